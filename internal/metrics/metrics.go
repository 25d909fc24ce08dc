// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job Metrics
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inlocker_jobs_total",
			Help: "Total number of finished jobs",
		},
		[]string{"kind", "mode", "status"}, // kind: "backup", "restore"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inlocker_job_duration_seconds",
			Help:    "Wall-clock duration of finished jobs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800, 3600}, // Jobs over large trees can take hours
		},
		[]string{"kind", "mode"},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inlocker_active_jobs",
			Help: "Current number of running jobs",
		},
	)

	// Data Volume Metrics
	SourceBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inlocker_source_bytes_total",
			Help: "Total bytes read from backup sources",
		},
	)

	ArchiveBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inlocker_archive_bytes_total",
			Help: "Total bytes written to finished archives",
		},
	)

	RestoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inlocker_restored_bytes_total",
			Help: "Total bytes extracted by restore jobs",
		},
	)

	// Scan Metrics
	FilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inlocker_files_scanned_total",
			Help: "Total number of source files examined by scans",
		},
	)

	FilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inlocker_files_skipped_total",
			Help: "Total number of source entries jobs could not include",
		},
	)

	IncrementalRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inlocker_incremental_pack_ratio",
			Help:    "Fraction of scanned files an incremental run packed",
			Buckets: []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
		},
	)

	// Verification Metrics
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inlocker_verifications_total",
			Help: "Total number of archive verifications",
		},
		[]string{"result"}, // "ok", "mismatch", "invalid"
	)

	// Scheduler Metrics
	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inlocker_scheduled_runs_total",
			Help: "Total number of scheduler-initiated backup runs",
		},
		[]string{"target", "status"},
	)

	ScheduleDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inlocker_schedule_delay_seconds",
			Help:    "Delay between a run's due time and its actual start",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 3600},
		},
	)

	// HTTP API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inlocker_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inlocker_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inlocker_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inlocker_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// startTime anchors the uptime gauge.
var startTime = time.Now()

// Init records static application info. Call once at startup.
func Init(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	AppUptime.Set(0)
}

// UpdateUptime refreshes the uptime gauge. The daemon calls this
// periodically; one-shot CLI runs never need to.
func UpdateUptime() {
	AppUptime.Set(time.Since(startTime).Seconds())
}

// RecordJob records the outcome of one finished job.
func RecordJob(kind, mode, status string, duration time.Duration) {
	JobsTotal.WithLabelValues(kind, mode, status).Inc()
	JobDuration.WithLabelValues(kind, mode).Observe(duration.Seconds())
}

// RecordScan records the file counts of one completed scan.
func RecordScan(scanned, skipped int) {
	FilesScanned.Add(float64(scanned))
	FilesSkipped.Add(float64(skipped))
}

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
