// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
backup.go - Archive Pack Pipeline

This file builds one archive out of a pack plan. The write path is a
single pass:

	source file -> tar -> zstd -> [aes-gcm] -> sha256 tee -> .partial file

Pipeline Steps:
 1. Load the previous manifest (incremental) and scan the source
 2. Derive the encryption key before touching the destination
 3. Write the container header, then stream entries through the stack
 4. Close tar, zstd, and cipher in order, flushing their footers
 5. Append the SHA-256 trailer, fsync, rename .partial into place
 6. Replace the target's manifest

The artifact keeps its .partial suffix until the trailer is on disk, so
an interrupted run never leaves a file that restore would accept. Every
failure and cancellation path removes the .partial file.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/beloureiro/inlocker/internal/archive"
	"github.com/beloureiro/inlocker/internal/compress"
	"github.com/beloureiro/inlocker/internal/crypt"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/manifest"
	"github.com/beloureiro/inlocker/internal/progress"
)

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// closeAll closes layered writers in reverse order, keeping the first
// error.
func closeAll(closers []io.Closer) error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// packRun carries the state of one archive-producing job through the
// pipeline stages.
type packRun struct {
	target Target
	scan   *scanResult
	params *crypt.Params // nil unless encrypted
	key    []byte
	opts   BackupOptions
	job    *Job
	tok    *Token
}

// runArchive executes one compressed or encrypted backup job.
func (e *Engine) runArchive(ctx context.Context, target Target, opts BackupOptions, job *Job, tok *Token) error {
	var prev *manifest.Manifest
	if target.Type == TypeIncremental {
		m, err := e.store.Load(target.DestinationDir, target.Name)
		if err != nil {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
		prev = m
	}

	scan, err := scanSource(ctx, target, prev, tok, opts.Sink, job.ID)
	if err != nil {
		return err
	}
	job.FilesScanned = scan.totalFiles
	job.Skipped = scan.skipped

	run := &packRun{
		target: target,
		scan:   scan,
		opts:   opts,
		job:    job,
		tok:    tok,
	}

	// Key material is derived before any destination I/O so a wrong
	// setup fails without leaving artifacts.
	if target.Mode == ModeEncrypted {
		p, err := e.kdfParams()
		if err != nil {
			return fmt.Errorf("failed to generate key parameters: %w", err)
		}
		run.key, err = crypt.DeriveKey(opts.Password, p)
		if err != nil {
			return fmt.Errorf("failed to derive key: %w", err)
		}
		run.params = &p
	}

	if err := os.MkdirAll(target.DestinationDir, 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	fileName := archiveFileName(target.Name, target.Type, target.Mode, e.now())
	finalPath := filepath.Join(target.DestinationDir, fileName)
	partialPath := finalPath + PartialSuffix

	checksum, err := e.packArchive(ctx, partialPath, run)
	if err != nil {
		removePartial(partialPath)
		return err
	}

	if err := os.Rename(partialPath, finalPath); err != nil {
		removePartial(partialPath)
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	if err := e.store.Replace(target.DestinationDir, target.Name, scan.next); err != nil {
		return fmt.Errorf("failed to persist manifest: %w", err)
	}

	job.ArchivePath = finalPath
	job.Checksum = checksum
	job.FilesPacked = scan.includedFiles

	if opts.Sink != nil {
		opts.Sink.Emit(progress.Event{
			JobID:          job.ID,
			Stage:          progress.StageFinalize,
			Message:        fileName,
			OriginalSize:   job.OriginalBytes,
			CompressedSize: job.ArchiveBytes,
		})
	}
	return nil
}

// packArchive streams the pack plan into the .partial file and returns
// the hex trailer checksum. The caller removes the partial on error.
//
//nolint:gosec // G304: partialPath is built from the validated target
func (e *Engine) packArchive(ctx context.Context, partialPath string, run *packRun) (sum string, err error) {
	out, err := os.OpenFile(partialPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrDestinationWrite, cerr)
		}
	}()

	count := &countingWriter{w: out}
	hasher := sha256.New()
	tee := io.MultiWriter(count, hasher)

	wm, err := wireMode(run.target.Mode)
	if err != nil {
		return "", err
	}
	if _, err := encodeHeader(tee, wm, run.params); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	var closers []io.Closer
	var bodyDest io.Writer = tee
	if run.target.Mode == ModeEncrypted {
		sw, err := crypt.NewStreamWriter(tee, run.key, run.params.NoncePrefix)
		if err != nil {
			return "", fmt.Errorf("failed to start cipher stream: %w", err)
		}
		closers = append(closers, sw)
		bodyDest = sw
	}
	zw, err := compress.NewWriter(bodyDest)
	if err != nil {
		closeAll(closers) //nolint:errcheck // Best effort flush on error
		return "", fmt.Errorf("failed to start compressor: %w", err)
	}
	closers = append(closers, zw)

	aw := archive.NewWriter(zw)
	if err := e.packEntries(ctx, aw, run); err != nil {
		closeAll(closers) //nolint:errcheck // Best effort flush before partial removal
		return "", err
	}

	if err := aw.Close(); err != nil {
		closeAll(closers) //nolint:errcheck // Best effort flush on error
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := closeAll(closers); err != nil {
		return "", fmt.Errorf("failed to flush archive: %w", err)
	}

	// The trailer is the digest of everything before it, so it bypasses
	// the hashing tee.
	digest := hasher.Sum(nil)
	if _, err := count.Write(digest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := out.Sync(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	run.job.ArchiveBytes = count.n
	return hex.EncodeToString(digest), nil
}

// packEntries writes every planned entry into the tar stream.
func (e *Engine) packEntries(ctx context.Context, aw *archive.Writer, run *packRun) error {
	var throttle *rate.Limiter
	if run.target.LimitBytesPerSec > 0 {
		throttle = rate.NewLimiter(rate.Limit(run.target.LimitBytesPerSec), archive.ChunkSize)
	}
	onChunk := func(next int64) error {
		if err := checkCancel(ctx, run.tok); err != nil {
			return err
		}
		if throttle != nil {
			if err := throttle.WaitN(ctx, int(next)); err != nil {
				return ErrCancelled
			}
		}
		return nil
	}

	// Directories earn a standalone tar entry only when nothing in the
	// plan sits beneath them; extraction recreates parent directories
	// implicitly for every other entry.
	hasChild := make(map[string]bool)
	for _, en := range run.scan.entries {
		if dir := path.Dir(en.relPath); dir != "." {
			hasChild[dir] = true
		}
	}

	var packedBytes int64
	for _, en := range run.scan.entries {
		if err := checkCancel(ctx, run.tok); err != nil {
			return err
		}
		switch en.kind {
		case kindDir:
			if hasChild[en.relPath] {
				continue
			}
			if err := aw.WriteDir(en.relPath, en.info); err != nil {
				return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
			}
		case kindSymlink:
			if err := aw.WriteSymlink(en.relPath, en.linkTarget, en.info); err != nil {
				return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
			}
		case kindFile:
			if !en.include {
				continue
			}
			if run.opts.Sink != nil {
				run.opts.Sink.Emit(progress.Event{
					JobID:   run.job.ID,
					Stage:   progress.StagePack,
					Message: en.relPath,
					Current: packedBytes,
					Total:   run.scan.includedBytes,
				})
			}
			written, err := packFile(aw, en, run, onChunk)
			if err != nil {
				return err
			}
			packedBytes += written
			run.job.OriginalBytes += written
		}
	}
	return nil
}

// packFile stores one regular file and records its manifest entry. A
// source that disappeared or became unreadable since the scan is skipped,
// not fatal; failures past the open abort the job because the tar stream
// already carries the entry header.
//
//nolint:gosec // G304: absPath came from walking the configured source
func packFile(aw *archive.Writer, en scanEntry, run *packRun, onChunk func(int64) error) (int64, error) {
	src, err := os.Open(en.absPath)
	if err != nil {
		logging.Warn().Err(err).Str("path", en.relPath).Msg("Skipping unreadable file")
		run.job.Skipped = append(run.job.Skipped, SkippedEntry{
			Path:   en.relPath,
			Reason: fmt.Sprintf("unreadable: %v", err),
		})
		return 0, nil
	}
	defer func() { _ = src.Close() }()

	res, err := aw.WriteFile(en.relPath, src, en.info, onChunk)
	if err != nil {
		return res.Written, err
	}
	if res.Truncated {
		logging.Warn().Str("path", en.relPath).Msg("File shrank during backup; stored zero-padded")
	}

	checksum := res.Checksum
	if res.LinkedTo != "" {
		// Hardlinked duplicate: the content lives under the first path.
		if first, ok := run.scan.next.Lookup(res.LinkedTo); ok {
			checksum = first.Checksum
		}
	}
	run.scan.next.Set(manifest.Entry{
		Path:     en.relPath,
		Size:     en.info.Size(),
		ModTime:  en.info.ModTime(),
		Checksum: checksum,
	})
	return res.Written, nil
}

// removePartial deletes a .partial artifact, logging when it cannot.
func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to remove partial archive")
	}
}
