// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package backup

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListArchives returns the finished archives in the target's destination,
// newest first. Files still carrying the .partial suffix, files that do
// not follow the archive naming scheme, and archives belonging to other
// targets sharing the same destination are ignored.
func (e *Engine) ListArchives(target Target) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(target.DestinationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination directory: %w", err)
	}

	var archives []ArchiveInfo
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasSuffix(name, PartialSuffix) {
			continue
		}
		info, ok := parseArchiveFileName(name)
		if !ok {
			continue
		}
		if info.Target != target.Name {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		info.Path = filepath.Join(target.DestinationDir, name)
		info.Size = fi.Size()
		info.Checksum = readTrailerChecksum(info.Path, fi.Size())
		archives = append(archives, info)
	}

	sort.Slice(archives, func(i, j int) bool {
		if !archives[i].CreatedAt.Equal(archives[j].CreatedAt) {
			return archives[i].CreatedAt.After(archives[j].CreatedAt)
		}
		return archives[i].Name < archives[j].Name
	})
	return archives, nil
}

// LatestArchive returns the newest finished archive for the target. The
// boolean is false when the target has no archives in its destination.
func (e *Engine) LatestArchive(target Target) (ArchiveInfo, bool, error) {
	archives, err := e.ListArchives(target)
	if err != nil {
		return ArchiveInfo{}, false, err
	}
	if len(archives) == 0 {
		return ArchiveInfo{}, false, nil
	}
	return archives[0], true, nil
}

// readTrailerChecksum reads the stored trailer digest without hashing
// the body. Returns "" for files too short to carry one.
//
//nolint:gosec // G304: path comes from listing the destination directory
func readTrailerChecksum(path string, size int64) string {
	if size < minArchiveSize {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	trailer := make([]byte, TrailerSize)
	if _, err := f.ReadAt(trailer, size-TrailerSize); err != nil {
		return ""
	}
	return hex.EncodeToString(trailer)
}
