// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package backup

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/beloureiro/inlocker/internal/manifest"
	"github.com/beloureiro/inlocker/internal/progress"
)

// Mode selects how a target's data is materialized in the destination.
type Mode string

const (
	// ModeCopy mirrors the source tree into a plain directory.
	ModeCopy Mode = "copy"

	// ModeCompressed packs the source into a tar+zstd archive.
	ModeCompressed Mode = "compressed"

	// ModeEncrypted packs the source into a tar+zstd archive wrapped in
	// AES-256-GCM with an Argon2id-derived key.
	ModeEncrypted Mode = "encrypted"
)

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeCopy, ModeCompressed, ModeEncrypted:
		return true
	default:
		return false
	}
}

// Type selects how much of the source a backup covers.
type Type string

const (
	// TypeFull packs every file in the source tree.
	TypeFull Type = "full"

	// TypeIncremental packs only files that are new or changed since the
	// target's last successful backup.
	TypeIncremental Type = "incremental"
)

// Valid reports whether t is a supported type.
func (t Type) Valid() bool {
	return t == TypeFull || t == TypeIncremental
}

// Target describes one backup source/destination pair.
type Target struct {
	// Name identifies the target; it prefixes archive file names and the
	// manifest file. Must not contain path separators.
	Name string `json:"name"`

	// SourceDir is the directory tree to back up.
	SourceDir string `json:"source_dir"`

	// DestinationDir receives archives (or the mirror directory in copy
	// mode) and the target's manifest.
	DestinationDir string `json:"destination_dir"`

	// Mode selects copy, compressed, or encrypted output.
	Mode Mode `json:"mode"`

	// Type selects full or incremental coverage. Ignored in copy mode,
	// which always mirrors the whole tree.
	Type Type `json:"type"`

	// LimitBytesPerSec caps read throughput for this target's jobs.
	// Zero means unlimited.
	LimitBytesPerSec int64 `json:"limit_bytes_per_sec,omitempty"`
}

// Validate checks the target definition before a job starts.
func (t Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target name is required")
	}
	if t.Name != filepath.Base(t.Name) || t.Name == "." || t.Name == ".." {
		return fmt.Errorf("target name %q must not contain path separators", t.Name)
	}
	if t.SourceDir == "" {
		return fmt.Errorf("target %s: source directory is required", t.Name)
	}
	if t.DestinationDir == "" {
		return fmt.Errorf("target %s: destination directory is required", t.Name)
	}
	if !t.Mode.Valid() {
		return fmt.Errorf("target %s: unsupported mode %q", t.Name, t.Mode)
	}
	if t.Mode != ModeCopy && !t.Type.Valid() {
		return fmt.Errorf("target %s: unsupported type %q", t.Name, t.Type)
	}
	if t.LimitBytesPerSec < 0 {
		return fmt.Errorf("target %s: negative rate limit", t.Name)
	}
	return nil
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	// StatusRunning indicates the job is currently executing.
	StatusRunning JobStatus = "running"

	// StatusCompleted indicates the job finished successfully.
	StatusCompleted JobStatus = "completed"

	// StatusFailed indicates the job failed.
	StatusFailed JobStatus = "failed"

	// StatusCancelled indicates the job was cancelled before completing.
	StatusCancelled JobStatus = "cancelled"
)

// SkippedEntry records a source entry the backup could not include, with
// the reason. Skips are reported on the job but do not fail it.
type SkippedEntry struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Job is the record of one backup or restore run. The engine fills it as
// the job progresses and returns it when the job ends.
type Job struct {
	// Unique identifier for the job
	ID string `json:"id"`

	// Name of the target this job ran for
	Target string `json:"target"`

	// Mode and type the job ran with
	Mode Mode `json:"mode"`
	Type Type `json:"type"`

	// Current status of the job
	Status JobStatus `json:"status"`

	// When the job started and finished
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Path to the finished artifact. Copy mode reports the mirror
	// directory here.
	ArchivePath string `json:"archive_path,omitempty"`

	// Hex SHA-256 trailer of the finished archive
	Checksum string `json:"checksum,omitempty"`

	// Counters accumulated while the job ran
	FilesScanned  int   `json:"files_scanned"`
	FilesPacked   int   `json:"files_packed"`
	OriginalBytes int64 `json:"original_bytes"`
	ArchiveBytes  int64 `json:"archive_bytes"`

	// Entries the job had to leave out, with reasons
	Skipped []SkippedEntry `json:"skipped,omitempty"`

	// Error message if the job failed
	Error string `json:"error,omitempty"`
}

// Duration returns the job's wall-clock run time.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// BackupOptions carries per-run inputs that are not part of the target
// definition. The password is used in memory only and never persisted.
type BackupOptions struct {
	// Password is required for encrypted targets.
	Password string

	// Sink receives progress events; nil discards them.
	Sink progress.Sink

	// Token allows cooperative cancellation. When nil the engine creates
	// a fresh token so Cancel(jobID) still works.
	Token *Token
}

// RestoreRequest describes one restore run.
type RestoreRequest struct {
	// ArchivePath is the archive file to restore from.
	ArchivePath string

	// Destination is the directory to extract into. Created if missing.
	Destination string

	// ExpectedChecksum, when set, must match the archive's trailer digest
	// (hex SHA-256) or the restore fails before any extraction.
	ExpectedChecksum string

	// Password is required for encrypted archives.
	Password string

	// Sink receives progress events; nil discards them.
	Sink progress.Sink

	// Token allows cooperative cancellation.
	Token *Token
}

// RestoreResult summarizes a finished restore.
type RestoreResult struct {
	JobID         string        `json:"job_id"`
	FilesRestored int           `json:"files_restored"`
	BytesWritten  int64         `json:"bytes_written"`
	Duration      time.Duration `json:"duration"`
}

// ArchiveInfo describes one finished archive in a target's destination.
type ArchiveInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Target    string    `json:"target"`
	Type      Type      `json:"type"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`

	// Hex SHA-256 trailer read from the file
	Checksum string `json:"checksum"`
}

// ManifestStore loads and replaces per-target manifests. Replace must be
// atomic so a crash never leaves a torn manifest.
type ManifestStore interface {
	Load(dir, target string) (*manifest.Manifest, error)
	Replace(dir, target string, m *manifest.Manifest) error
}
