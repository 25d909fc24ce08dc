// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
engine.go - Job Orchestration

The Engine is the single entry point for running jobs. It owns:
  - job identity and lifecycle: status transitions, timing, and the
    finished Job record
  - the per-target busy lock: at most one backup job per target at a
    time, while jobs on distinct targets run independently
  - cooperative cancellation by job ID
  - metrics emission for every finished job

Engine methods block until the job finishes; concurrency comes from the
caller running them on separate goroutines. Within one job all I/O is
strictly sequential.

Thread Safety:
The job registry is guarded by a mutex. Job records are mutated only by
the goroutine running the job; ActiveJobs serves immutable
registration-time snapshots.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beloureiro/inlocker/internal/compress"
	"github.com/beloureiro/inlocker/internal/crypt"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/metrics"
	"github.com/beloureiro/inlocker/internal/progress"
)

const (
	jobKindBackup  = "backup"
	jobKindRestore = "restore"
)

// Engine runs backup, restore, and verification jobs.
type Engine struct {
	store ManifestStore

	// Injectable seams, fixed at construction
	now       func() time.Time
	kdfParams func() (crypt.Params, error)
	expansion func(compressedSize int64) int64

	// Live job registry
	mu   sync.Mutex
	jobs map[string]*jobHandle
	busy map[string]string // target name -> holding job ID
}

// jobHandle tracks one running job. The snapshot fields are immutable
// after registration; the Job itself is mutated only by the goroutine
// running the job.
type jobHandle struct {
	job *Job
	tok *Token

	id      string
	kind    string
	target  string
	mode    Mode
	typ     Type
	started time.Time
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the engine's time source. Tests use this to pin
// archive timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithKDFParams overrides how fresh key-derivation parameters are
// produced for encrypted backups.
func WithKDFParams(fn func() (crypt.Params, error)) Option {
	return func(e *Engine) { e.kdfParams = fn }
}

// WithExpansionLimit overrides the decompression ceiling applied during
// restores, as a function of the compressed payload size.
func WithExpansionLimit(fn func(compressedSize int64) int64) Option {
	return func(e *Engine) { e.expansion = fn }
}

// New returns an Engine that persists manifests through store.
func New(store ManifestStore, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		now:       time.Now,
		kdfParams: crypt.DefaultParams,
		expansion: compress.ExpansionLimit,
		jobs:      make(map[string]*jobHandle),
		busy:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// expansionLimit is the restore-side decompressed-output ceiling for an
// archive with the given compressed payload size.
func (e *Engine) expansionLimit(compressedSize int64) int64 {
	return e.expansion(compressedSize)
}

// RunBackup executes one backup job for target and blocks until it
// finishes. The returned Job carries the full record on every outcome;
// a non-nil error is also recorded on it. A second job for a target
// that already has one in flight fails with ErrTargetBusy.
func (e *Engine) RunBackup(ctx context.Context, target Target, opts BackupOptions) (*Job, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if target.Mode == ModeEncrypted && opts.Password == "" {
		return nil, ErrPasswordRequired
	}
	tok := opts.Token
	if tok == nil {
		tok = NewToken()
	}

	job := &Job{
		ID:        uuid.NewString(),
		Target:    target.Name,
		Mode:      target.Mode,
		Type:      target.Type,
		Status:    StatusRunning,
		StartedAt: e.now(),
	}
	h := &jobHandle{
		job:     job,
		tok:     tok,
		id:      job.ID,
		kind:    jobKindBackup,
		target:  target.Name,
		mode:    target.Mode,
		typ:     target.Type,
		started: job.StartedAt,
	}
	if err := e.register(h); err != nil {
		return nil, err
	}
	defer e.release(h)

	logging.Info().
		Str("job_id", job.ID).
		Str("target", target.Name).
		Str("mode", string(target.Mode)).
		Str("type", string(target.Type)).
		Msg("Backup job started")
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	var err error
	if target.Mode == ModeCopy {
		err = e.runCopy(ctx, target, opts, job, tok)
	} else {
		err = e.runArchive(ctx, target, opts, job, tok)
	}
	e.finishJob(job, jobKindBackup, err)

	metrics.RecordScan(job.FilesScanned, len(job.Skipped))
	metrics.SourceBytes.Add(float64(job.OriginalBytes))
	if job.ArchiveBytes > 0 {
		metrics.ArchiveBytes.Add(float64(job.ArchiveBytes))
	}
	if err == nil && target.Mode != ModeCopy && target.Type == TypeIncremental && job.FilesScanned > 0 {
		metrics.IncrementalRatio.Observe(float64(job.FilesPacked) / float64(job.FilesScanned))
	}

	e.emitDone(opts.Sink, job)
	return job, err
}

// RunRestore restores one archive and blocks until it finishes. The
// archive's integrity is verified before anything is extracted.
// Restores do not take the target busy lock; they never touch the
// target's source tree or manifest.
func (e *Engine) RunRestore(ctx context.Context, req RestoreRequest) (*RestoreResult, error) {
	if req.ArchivePath == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("destination directory is required")
	}
	tok := req.Token
	if tok == nil {
		tok = NewToken()
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: e.now(),
	}
	if info, ok := parseArchiveFileName(filepath.Base(req.ArchivePath)); ok {
		job.Target = info.Target
		job.Mode = info.Mode
		job.Type = info.Type
	}
	h := &jobHandle{
		job:     job,
		tok:     tok,
		id:      job.ID,
		kind:    jobKindRestore,
		target:  job.Target,
		mode:    job.Mode,
		typ:     job.Type,
		started: job.StartedAt,
	}
	if err := e.register(h); err != nil {
		return nil, err
	}
	defer e.release(h)

	logging.Info().
		Str("job_id", job.ID).
		Str("archive", req.ArchivePath).
		Str("destination", req.Destination).
		Msg("Restore job started")
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	result, err := e.runRestore(ctx, req, job, tok)
	e.finishJob(job, jobKindRestore, err)
	if result != nil {
		result.Duration = job.Duration()
		metrics.RestoredBytes.Add(float64(result.BytesWritten))
	}

	e.emitDone(req.Sink, job)
	return result, err
}

// Cancel requests cancellation of a running job. The job stops at its
// next polling point; Cancel itself returns immediately. Unknown and
// already-finished job IDs return ErrJobNotFound.
func (e *Engine) Cancel(jobID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	h.tok.Cancel()
	return nil
}

// CancelAll requests cancellation of every running job. Used for
// shutdown; each job still cleans up its partial artifacts.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.jobs {
		h.tok.Cancel()
	}
}

// ActiveJobs returns a snapshot of the jobs currently running, oldest
// first. Snapshots carry registration-time state; live counters are the
// progress sink's concern.
func (e *Engine) ActiveJobs() []*Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Job, 0, len(e.jobs))
	for _, h := range e.jobs {
		out = append(out, &Job{
			ID:        h.id,
			Target:    h.target,
			Mode:      h.mode,
			Type:      h.typ,
			Status:    StatusRunning,
			StartedAt: h.started,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// register adds a job to the live registry, taking the target busy lock
// for backup jobs.
func (e *Engine) register(h *jobHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h.kind == jobKindBackup {
		if holder, held := e.busy[h.target]; held {
			return fmt.Errorf("%w: target %s held by job %s", ErrTargetBusy, h.target, holder)
		}
		e.busy[h.target] = h.id
	}
	e.jobs[h.id] = h
	return nil
}

// release removes a finished job from the registry.
func (e *Engine) release(h *jobHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h.kind == jobKindBackup {
		delete(e.busy, h.target)
	}
	delete(e.jobs, h.id)
}

// finishJob closes out a job record and emits its terminal log line and
// metrics.
func (e *Engine) finishJob(job *Job, kind string, err error) {
	job.FinishedAt = e.now()
	switch {
	case err == nil:
		job.Status = StatusCompleted
	case errors.Is(err, ErrCancelled):
		job.Status = StatusCancelled
		job.Error = err.Error()
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}

	if job.Status == StatusFailed {
		logging.Error().
			Str("job_id", job.ID).
			Str("target", job.Target).
			Str("error", job.Error).
			Dur("duration", job.Duration()).
			Msg("Job failed")
	} else {
		logging.Info().
			Str("job_id", job.ID).
			Str("target", job.Target).
			Str("status", string(job.Status)).
			Dur("duration", job.Duration()).
			Int("files_packed", job.FilesPacked).
			Int64("original_bytes", job.OriginalBytes).
			Int64("archive_bytes", job.ArchiveBytes).
			Msg("Job finished")
	}

	metrics.RecordJob(kind, string(job.Mode), string(job.Status), job.Duration())
}

// emitDone tells the sink the job reached a terminal state.
func (e *Engine) emitDone(sink progress.Sink, job *Job) {
	if sink == nil {
		return
	}
	sink.Emit(progress.Event{
		JobID:   job.ID,
		Stage:   progress.StageDone,
		Message: string(job.Status),
	})
}
