// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package manifest persists the last-known state of a backup target's
// files. The manifest is the incremental filter's memory: one entry per
// relative path with size, modification time, and content checksum.
package manifest

import (
	"sort"
	"time"
)

// Version is the on-disk manifest document version.
const Version = 1

// Entry records the last successfully backed-up state of one file.
// Checksum is always a hex SHA-256 of the file content; size and mtime
// are a cheap pre-filter, never the sole change signal.
type Entry struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Checksum string    `json:"checksum"`
}

// Manifest maps relative paths to their recorded state for one target.
type Manifest struct {
	Version   int              `json:"version"`
	Target    string           `json:"target"`
	CreatedAt time.Time        `json:"created_at"`
	Entries   map[string]Entry `json:"entries"`
}

// New returns an empty manifest for the named target.
func New(target string) *Manifest {
	return &Manifest{
		Version:   Version,
		Target:    target,
		CreatedAt: time.Now().UTC(),
		Entries:   make(map[string]Entry),
	}
}

// Lookup returns the entry for a relative path, if present.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	e, ok := m.Entries[path]
	return e, ok
}

// Set stores or replaces the entry for e.Path.
func (m *Manifest) Set(e Entry) {
	m.Entries[e.Path] = e
}

// Len returns the number of recorded entries.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Paths returns all recorded paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Entries))
	for p := range m.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
