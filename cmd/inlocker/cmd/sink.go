// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/beloureiro/inlocker/internal/progress"
)

// consoleSink renders progress events as single lines. Stage
// transitions always print; counter updates print at most once per
// interval so a million-file tree does not produce a million lines.
type consoleSink struct {
	w io.Writer

	mu        sync.Mutex
	lastStage map[string]progress.Stage // job ID -> last printed stage
	lastCount map[string]int64          // job ID -> last printed counter
}

// counterStep is how many units a counter must advance before another
// line is printed for the same stage.
const counterStep = 100

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{
		w:         w,
		lastStage: make(map[string]progress.Stage),
		lastCount: make(map[string]int64),
	}
}

// Emit implements progress.Sink.
func (s *consoleSink) Emit(e progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stageChanged := s.lastStage[e.JobID] != e.Stage
	if stageChanged {
		s.lastStage[e.JobID] = e.Stage
		s.lastCount[e.JobID] = e.Current
	} else if e.Current > 0 && e.Current-s.lastCount[e.JobID] < counterStep {
		return
	} else {
		s.lastCount[e.JobID] = e.Current
	}

	line := fmt.Sprintf("[%s]", e.Stage)
	if e.Message != "" {
		line += " " + e.Message
	}
	switch {
	case e.Total > 0:
		line += fmt.Sprintf(" (%d/%d)", e.Current, e.Total)
	case e.Current > 0:
		line += fmt.Sprintf(" (%d)", e.Current)
	}
	if e.OriginalSize > 0 && e.CompressedSize > 0 {
		line += fmt.Sprintf(" %s -> %s", formatBytes(e.OriginalSize), formatBytes(e.CompressedSize))
	}
	fmt.Fprintln(s.w, line)
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
