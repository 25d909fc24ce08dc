// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// FileStore persists manifests as JSON documents next to the archives
// they describe. Replacement is atomic: the new document is written to a
// temporary file in the same directory and renamed over the old one, so
// a crash mid-write never leaves a truncated manifest.
type FileStore struct{}

// NewFileStore returns a manifest store backed by plain files.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Path returns the manifest location for a target inside its destination
// directory.
func (s *FileStore) Path(dir, target string) string {
	return filepath.Join(dir, target+".manifest.json")
}

// Load reads the manifest for a target. A missing manifest is not an
// error: the first backup of a target starts from an empty one.
func (s *FileStore) Load(dir, target string) (*Manifest, error) {
	path := s.Path(dir, target)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(target), nil
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	return &m, nil
}

// Replace atomically installs m as the manifest for its target.
func (s *FileStore) Replace(dir, target string, m *Manifest) error {
	m.Version = Version
	m.CreatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+target+".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close manifest temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(dir, target)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to install manifest: %w", err)
	}
	return nil
}
