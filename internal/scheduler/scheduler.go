// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package scheduler runs recurring backups for the daemon. Each
// scheduled target gets its own Service in the supervisor's jobs layer,
// so targets tick and fail independently.
//
// Timer logic:
//   - intervals of 24h and longer run at the target's preferred hour,
//     scheduling the next occurrence after each run
//   - shorter intervals simply re-arm interval after the previous run
//
// The timer re-arms after a backup completes, not on a fixed grid, so a
// long-running backup never overlaps the next one for the same target.
package scheduler

import (
	"context"
	"time"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/metrics"
	"github.com/beloureiro/inlocker/internal/progress"
)

// Runner executes backup jobs. Satisfied by *backup.Engine.
type Runner interface {
	RunBackup(ctx context.Context, target backup.Target, opts backup.BackupOptions) (*backup.Job, error)
}

// Entry is one scheduled target.
type Entry struct {
	// Target is the engine's immutable target definition.
	Target backup.Target

	// Interval between runs. Must be positive.
	Interval time.Duration

	// PreferredHour is the local hour of day used for intervals of 24h
	// and longer.
	PreferredHour int

	// Password supplies the encryption password for each run. Nil for
	// unencrypted targets. Called per run so a rotated password file
	// takes effect without a daemon restart.
	Password func() (string, error)
}

// Service schedules one target. It implements suture.Service.
type Service struct {
	runner Runner
	entry  Entry
	sink   progress.Sink

	// record receives every finished job, nil to skip. Failures to
	// record never fail the schedule.
	record func(*backup.Job)

	// now is a test seam for timer math.
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSink routes job progress events to sink.
func WithSink(sink progress.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithRecorder registers a callback for every finished job.
func WithRecorder(record func(*backup.Job)) Option {
	return func(s *Service) { s.record = record }
}

// WithClock overrides the scheduler's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the schedule service for one target.
func New(runner Runner, entry Entry, opts ...Option) *Service {
	s := &Service{
		runner: runner,
		entry:  entry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve implements suture.Service: it ticks until the context ends.
func (s *Service) Serve(ctx context.Context) error {
	next := s.nextRunTime()
	logging.Info().
		Str("target", s.entry.Target.Name).
		Dur("interval", s.entry.Interval).
		Time("next_run", next).
		Msg("Backup schedule armed")

	timer := time.NewTimer(next.Sub(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if delay := s.now().Sub(next); delay > 0 {
				metrics.ScheduleDelay.Observe(delay.Seconds())
			}
			s.runOnce(ctx)
			next = s.nextRunTime()
			timer.Reset(next.Sub(s.now()))
		}
	}
}

// runOnce executes one scheduled backup and records the outcome.
func (s *Service) runOnce(ctx context.Context) {
	opts := backup.BackupOptions{Sink: s.sink}
	if s.entry.Password != nil {
		password, err := s.entry.Password()
		if err != nil {
			metrics.ScheduledRunsTotal.WithLabelValues(s.entry.Target.Name, "skipped").Inc()
			logging.Error().
				Err(err).
				Str("target", s.entry.Target.Name).
				Msg("Scheduled backup skipped: password unavailable")
			return
		}
		opts.Password = password
	}

	job, err := s.runner.RunBackup(ctx, s.entry.Target, opts)
	switch {
	case err != nil && job == nil:
		metrics.ScheduledRunsTotal.WithLabelValues(s.entry.Target.Name, "rejected").Inc()
		logging.Error().
			Err(err).
			Str("target", s.entry.Target.Name).
			Msg("Scheduled backup failed to start")
		return
	case err != nil:
		logging.Error().
			Err(err).
			Str("target", s.entry.Target.Name).
			Str("job_id", job.ID).
			Msg("Scheduled backup failed")
	default:
		logging.Info().
			Str("target", s.entry.Target.Name).
			Str("job_id", job.ID).
			Int("files_packed", job.FilesPacked).
			Msg("Scheduled backup completed")
	}
	metrics.ScheduledRunsTotal.WithLabelValues(s.entry.Target.Name, string(job.Status)).Inc()

	if s.record != nil {
		s.record(job)
	}
}

// nextRunTime determines when the next scheduled backup should run.
func (s *Service) nextRunTime() time.Time {
	now := s.now()
	interval := s.entry.Interval

	if interval >= 24*time.Hour {
		// Daily or longer: align to the preferred hour.
		next := time.Date(now.Year(), now.Month(), now.Day(),
			s.entry.PreferredHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		if interval > 24*time.Hour {
			days := int(interval.Hours() / 24)
			next = next.Add(time.Duration(days-1) * 24 * time.Hour)
		}
		return next
	}

	return now.Add(interval)
}

// String names the service in supervisor logs.
func (s *Service) String() string {
	return "schedule-" + s.entry.Target.Name
}
