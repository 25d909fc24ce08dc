// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package telemetry serves the daemon's read-only HTTP surface: a
// liveness probe, Prometheus metrics, and a JSON status view of active
// jobs and recent history. The listener binds localhost by default and
// carries no authentication; it never mutates engine state.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/history"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/metrics"
)

// statusHistoryLimit caps how many finished jobs the status view shows.
const statusHistoryLimit = 20

// JobLister exposes the engine's live job registry.
type JobLister interface {
	ActiveJobs() []*backup.Job
}

// Historian exposes recent finished-job records. A nil Historian leaves
// the history section of the status view empty.
type Historian interface {
	Recent(n int) ([]history.Record, error)
}

// Status is the /api/v1/status response body.
type Status struct {
	StartedAt  time.Time        `json:"started_at"`
	ActiveJobs []*backup.Job    `json:"active_jobs"`
	RecentJobs []history.Record `json:"recent_jobs"`
}

// NewRouter builds the telemetry handler.
func NewRouter(jobs JobLister, hist Historian) http.Handler {
	startedAt := time.Now().UTC()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		metrics.UpdateUptime()
		promhttp.Handler().ServeHTTP(w, req)
	}))

	r.Get("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		status := Status{
			StartedAt:  startedAt,
			ActiveJobs: jobs.ActiveJobs(),
			RecentJobs: []history.Record{},
		}
		if hist != nil {
			records, err := hist.Recent(statusHistoryLimit)
			if err != nil {
				logging.Error().Err(err).Msg("Status view failed to read history")
			} else if records != nil {
				status.RecentJobs = records
			}
		}
		if status.ActiveJobs == nil {
			status.ActiveJobs = []*backup.Job{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logging.Error().Err(err).Msg("Status view encoding failed")
		}
	})

	return r
}

// requestMetrics records per-endpoint request counters and latencies.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// NewServer wraps the router in an http.Server bound to addr, with the
// conservative timeouts a localhost diagnostics listener needs.
func NewServer(addr string, jobs JobLister, hist Historian) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(jobs, hist),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
