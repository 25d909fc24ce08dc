// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are package-level and registered with the default registry
through promauto, so importing the package is enough to make them
scrapeable. The daemon exposes them at /metrics; one-shot CLI runs record
into the same collectors but never serve them.

# Available Metrics

Job metrics:
  - inlocker_jobs_total: Finished jobs (counter)
    Labels: kind (backup, restore), mode (copy, compressed, encrypted), status
  - inlocker_job_duration_seconds: Job wall-clock duration (histogram)
    Labels: kind, mode
  - inlocker_active_jobs: Currently running jobs (gauge)

Data volume metrics:
  - inlocker_source_bytes_total: Bytes read from backup sources (counter)
  - inlocker_archive_bytes_total: Bytes written to finished archives (counter)
  - inlocker_restored_bytes_total: Bytes extracted by restores (counter)

Scan metrics:
  - inlocker_files_scanned_total: Source files examined (counter)
  - inlocker_files_skipped_total: Entries jobs could not include (counter)
  - inlocker_incremental_pack_ratio: Fraction of files packed per incremental run (histogram)

Verification metrics:
  - inlocker_verifications_total: Archive verifications (counter)
    Labels: result (ok, mismatch, invalid)

Scheduler metrics:
  - inlocker_scheduled_runs_total: Scheduler-initiated runs (counter)
    Labels: target, status
  - inlocker_schedule_delay_seconds: Start delay past due time (histogram)

HTTP API metrics:
  - inlocker_api_requests_total: API requests (counter)
    Labels: method, endpoint, status
  - inlocker_api_request_duration_seconds: API request latency (histogram)
    Labels: method, endpoint

System metrics:
  - inlocker_app_info: Version and build information (gauge)
    Labels: version, go_version
  - inlocker_app_uptime_seconds: Process uptime (gauge)

# Usage Example

	import (
	    "github.com/beloureiro/inlocker/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    metrics.Init(version)
	    http.Handle("/metrics", promhttp.Handler())
	}

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'inlocker'
	    static_configs:
	      - targets: ['localhost:9755']
	    metrics_path: '/metrics'
	    scrape_interval: 15s
*/
package metrics
