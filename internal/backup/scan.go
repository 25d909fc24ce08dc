// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
scan.go - Source Tree Scanning and Change Detection

The scan walks the source tree once, classifying every entry before any
packing starts. For incremental backups it decides per regular file
whether the file must be packed again:

 1. not in the previous manifest        -> include (new)
 2. size or mtime differs               -> include (changed)
 3. size and mtime match                -> hash the content;
    checksum differs                    -> include (silent change)
    checksum matches                    -> skip, carry the old entry

The size/mtime check is the cheap pre-filter; only files that pass it
pay for a full read. A file whose content changed while size and mtime
were preserved is still caught by step 3. A merely touched file costs
one repack, never a missed change.

Unreadable entries and unsupported file types (sockets, devices, FIFOs)
are recorded as skipped and do not fail the backup. Only an unreadable
source root aborts.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beloureiro/inlocker/internal/integrity"
	"github.com/beloureiro/inlocker/internal/manifest"
	"github.com/beloureiro/inlocker/internal/progress"
)

// entryKind classifies a scanned entry.
type entryKind int

const (
	kindDir entryKind = iota
	kindFile
	kindSymlink
)

// scanEntry is one entry of the pack plan, in walk order.
type scanEntry struct {
	relPath    string // slash-separated path relative to the source root
	absPath    string
	info       fs.FileInfo
	kind       entryKind
	linkTarget string // symlink target, kindSymlink only

	// include is false for regular files the incremental scan proved
	// unchanged. Directories and symlinks are always included.
	include bool
}

// scanResult is the full pack plan for one backup run.
type scanResult struct {
	entries []scanEntry
	skipped []SkippedEntry

	// next is the manifest to persist after a successful run. Unchanged
	// files are carried over here; included files are added during
	// packing once their checksums are known.
	next *manifest.Manifest

	totalFiles    int
	includedFiles int
	includedBytes int64
}

// scanProgressStride is how many scanned entries pass between progress
// events.
const scanProgressStride = 128

// scanSource walks the source tree and builds the pack plan. prev is the
// previous manifest for incremental runs, nil for full runs.
func scanSource(ctx context.Context, target Target, prev *manifest.Manifest, tok *Token, sink progress.Sink, jobID string) (*scanResult, error) {
	root := filepath.Clean(target.SourceDir)
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnreadable, root)
	}

	res := &scanResult{next: manifest.New(target.Name)}
	scanned := 0

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := checkCancel(ctx, tok); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
			}
			res.skip(relTo(root, path), fmt.Sprintf("unreadable: %v", err))
			return nil
		}
		if path == root {
			return nil
		}

		rel := relTo(root, path)
		scanned++
		if sink != nil && scanned%scanProgressStride == 0 {
			sink.Emit(progress.Event{
				JobID:   jobID,
				Stage:   progress.StageScan,
				Message: rel,
				Current: int64(scanned),
			})
		}

		switch {
		case d.IsDir():
			return res.addDir(rel, path)
		case d.Type()&fs.ModeSymlink != 0:
			return res.addSymlink(rel, path)
		case d.Type().IsRegular():
			return res.addFile(rel, path, prev)
		default:
			res.skip(rel, fmt.Sprintf("unsupported file type %s", d.Type()))
			return nil
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if sink != nil {
		sink.Emit(progress.Event{
			JobID:   jobID,
			Stage:   progress.StageScan,
			Message: "scan complete",
			Current: int64(scanned),
			Total:   int64(scanned),
		})
	}
	return res, nil
}

// relTo returns path relative to root with forward slashes.
func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (r *scanResult) skip(rel, reason string) {
	r.skipped = append(r.skipped, SkippedEntry{Path: rel, Reason: reason})
}

func (r *scanResult) addDir(rel, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		r.skip(rel, fmt.Sprintf("unreadable: %v", err))
		return nil
	}
	r.entries = append(r.entries, scanEntry{
		relPath: rel,
		absPath: path,
		info:    info,
		kind:    kindDir,
		include: true,
	})
	return nil
}

func (r *scanResult) addSymlink(rel, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		r.skip(rel, fmt.Sprintf("unreadable: %v", err))
		return nil
	}
	target, err := os.Readlink(path)
	if err != nil {
		r.skip(rel, fmt.Sprintf("unreadable link: %v", err))
		return nil
	}
	r.entries = append(r.entries, scanEntry{
		relPath:    rel,
		absPath:    path,
		info:       info,
		kind:       kindSymlink,
		linkTarget: target,
		include:    true,
	})
	return nil
}

// addFile classifies one regular file, consulting the previous manifest
// on incremental runs.
func (r *scanResult) addFile(rel, path string, prev *manifest.Manifest) error {
	info, err := os.Lstat(path)
	if err != nil {
		r.skip(rel, fmt.Sprintf("unreadable: %v", err))
		return nil
	}
	r.totalFiles++

	entry := scanEntry{
		relPath: rel,
		absPath: path,
		info:    info,
		kind:    kindFile,
		include: true,
	}

	if prev != nil {
		if old, ok := prev.Lookup(rel); ok && old.Size == info.Size() && old.ModTime.Equal(info.ModTime()) {
			sum, err := integrity.ChecksumFile(path)
			switch {
			case err != nil:
				r.skip(rel, fmt.Sprintf("unreadable: %v", err))
				return nil
			case sum == old.Checksum:
				// Proven unchanged: stays out of the archive, carries
				// its manifest entry forward.
				entry.include = false
				r.next.Set(old)
			}
		}
	}

	if entry.include {
		r.includedFiles++
		r.includedBytes += info.Size()
	}
	r.entries = append(r.entries, entry)
	return nil
}
