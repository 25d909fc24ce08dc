// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package progress defines the event stream emitted by running jobs.
// The engine emits events and never retains them; rendering is entirely
// the sink implementor's concern.
package progress

// Stage identifies the pipeline phase an event belongs to.
type Stage string

// Pipeline stages, in rough execution order across backup and restore.
const (
	StageScan       Stage = "scan"
	StagePack       Stage = "pack"
	StageMirror     Stage = "mirror"
	StageFinalize   Stage = "finalize"
	StageVerify     Stage = "verify"
	StageDecrypt    Stage = "decrypt"
	StageDecompress Stage = "decompress"
	StageExtract    Stage = "extract"
	StageCleanup    Stage = "cleanup"
	StageDone       Stage = "done"
)

// Event is a single progress notification for one job. Counter fields are
// zero when they do not apply to the stage.
type Event struct {
	JobID          string `json:"job_id"`
	Stage          Stage  `json:"stage"`
	Message        string `json:"message,omitempty"`
	Current        int64  `json:"current,omitempty"`
	Total          int64  `json:"total,omitempty"`
	OriginalSize   int64  `json:"original_size,omitempty"`
	CompressedSize int64  `json:"compressed_size,omitempty"`
}

// Sink receives progress events. Implementations must not block for long;
// the pipeline emits synchronously.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard is a sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})
