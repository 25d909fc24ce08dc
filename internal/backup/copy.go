// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
copy.go - Mirror Mode

Copy targets maintain a plain directory mirror of the source under
{destination}/{name}/. A run is idempotent:

  - files whose mirror copy already has the same size and checksum are
    skipped (their mode and mtime are still realigned when drifted)
  - changed and new files are written to a .partial sibling and renamed
    into place, so the mirror never holds a half-written file
  - paths present in the mirror but gone from the source are deleted,
    vanished directories as whole subtrees

The target's manifest is refreshed from the run so a later switch to
incremental archives starts from accurate state.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/beloureiro/inlocker/internal/archive"
	"github.com/beloureiro/inlocker/internal/integrity"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/manifest"
	"github.com/beloureiro/inlocker/internal/progress"
)

// copyRun carries the state of one mirror job.
type copyRun struct {
	root string // mirror root: {destination}/{name}
	keep map[string]bool
	scan *scanResult
	opts BackupOptions
	job  *Job
	tok  *Token

	throttle *rate.Limiter
	buf      []byte
	dirs     []dirFixup
}

// runCopy executes one mirror job.
func (e *Engine) runCopy(ctx context.Context, target Target, opts BackupOptions, job *Job, tok *Token) error {
	scan, err := scanSource(ctx, target, nil, tok, opts.Sink, job.ID)
	if err != nil {
		return err
	}
	job.FilesScanned = scan.totalFiles
	job.Skipped = scan.skipped

	root := filepath.Join(target.DestinationDir, target.Name)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	run := &copyRun{
		root: root,
		keep: make(map[string]bool, len(scan.entries)),
		scan: scan,
		opts: opts,
		job:  job,
		tok:  tok,
		buf:  make([]byte, archive.ChunkSize),
	}
	if target.LimitBytesPerSec > 0 {
		run.throttle = rate.NewLimiter(rate.Limit(target.LimitBytesPerSec), archive.ChunkSize)
	}

	// Paths that survive cleanup: everything the scan saw, including
	// entries it had to skip. Cleanup only removes what is gone from
	// the source entirely.
	for _, en := range scan.entries {
		run.keep[en.relPath] = true
	}
	for _, sk := range scan.skipped {
		run.keep[sk.Path] = true
	}

	for _, en := range scan.entries {
		if err := checkCancel(ctx, tok); err != nil {
			return err
		}
		if err := run.mirrorEntry(ctx, en); err != nil {
			return err
		}
	}
	run.applyDirFixups()

	if err := run.removeExtras(ctx); err != nil {
		return err
	}

	if err := e.store.Replace(target.DestinationDir, target.Name, scan.next); err != nil {
		return fmt.Errorf("failed to persist manifest: %w", err)
	}

	job.ArchivePath = root
	if opts.Sink != nil {
		opts.Sink.Emit(progress.Event{
			JobID:        job.ID,
			Stage:        progress.StageFinalize,
			Message:      root,
			OriginalSize: job.OriginalBytes,
		})
	}
	return nil
}

// mirrorEntry brings one source entry's mirror copy up to date.
func (c *copyRun) mirrorEntry(ctx context.Context, en scanEntry) error {
	dst := filepath.Join(c.root, filepath.FromSlash(en.relPath))
	switch en.kind {
	case kindDir:
		return c.mirrorDir(en, dst)
	case kindSymlink:
		return c.mirrorSymlink(en, dst)
	case kindFile:
		return c.mirrorFile(ctx, en, dst)
	}
	return nil
}

// mirrorDir ensures dst is a directory and queues its mode and mtime for
// the fixup pass.
func (c *copyRun) mirrorDir(en scanEntry, dst string) error {
	if fi, err := os.Lstat(dst); err == nil && !fi.IsDir() {
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
		}
	}
	if err := os.MkdirAll(dst, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	c.dirs = append(c.dirs, dirFixup{
		path:  dst,
		mode:  en.info.Mode().Perm(),
		mtime: en.info.ModTime(),
	})
	return nil
}

// mirrorSymlink recreates a symlink, leaving an already-correct one
// alone.
func (c *copyRun) mirrorSymlink(en scanEntry, dst string) error {
	if current, err := os.Readlink(dst); err == nil && current == en.linkTarget {
		return nil
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := os.Symlink(en.linkTarget, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	return nil
}

// mirrorFile skips a file whose mirror copy is already identical and
// copies it otherwise. Source files that became unreadable since the
// scan are recorded as skipped, not fatal.
func (c *copyRun) mirrorFile(ctx context.Context, en scanEntry, dst string) error {
	if sum, ok, err := c.identicalAt(en, dst); err != nil {
		return err
	} else if ok {
		c.realignMetadata(en, dst)
		c.scan.next.Set(manifest.Entry{
			Path:     en.relPath,
			Size:     en.info.Size(),
			ModTime:  en.info.ModTime(),
			Checksum: sum,
		})
		return nil
	}

	if c.opts.Sink != nil {
		c.opts.Sink.Emit(progress.Event{
			JobID:   c.job.ID,
			Stage:   progress.StageMirror,
			Message: en.relPath,
			Current: c.job.OriginalBytes,
			Total:   c.scan.includedBytes,
		})
	}

	sum, written, err := c.copyFileContents(ctx, en, dst)
	if err != nil {
		return err
	}
	if written < 0 {
		// Source vanished or became unreadable; already recorded.
		return nil
	}
	c.job.FilesPacked++
	c.job.OriginalBytes += written
	c.scan.next.Set(manifest.Entry{
		Path:     en.relPath,
		Size:     en.info.Size(),
		ModTime:  en.info.ModTime(),
		Checksum: sum,
	})
	return nil
}

// identicalAt reports whether the mirror copy at dst already matches the
// source file, returning the shared checksum when it does.
func (c *copyRun) identicalAt(en scanEntry, dst string) (string, bool, error) {
	fi, err := os.Lstat(dst)
	if err != nil || !fi.Mode().IsRegular() || fi.Size() != en.info.Size() {
		return "", false, nil
	}
	srcSum, err := integrity.ChecksumFile(en.absPath)
	if err != nil {
		return "", false, nil
	}
	dstSum, err := integrity.ChecksumFile(dst)
	if err != nil {
		return "", false, nil
	}
	if srcSum != dstSum {
		return "", false, nil
	}
	return srcSum, true, nil
}

// realignMetadata reapplies the source mode and mtime to an identical
// mirror copy when they drifted.
func (c *copyRun) realignMetadata(en scanEntry, dst string) {
	fi, err := os.Lstat(dst)
	if err != nil {
		return
	}
	if fi.Mode().Perm() != en.info.Mode().Perm() {
		if err := os.Chmod(dst, en.info.Mode().Perm()); err != nil {
			logging.Warn().Err(err).Str("path", dst).Msg("Failed to realign file mode")
		}
	}
	if !fi.ModTime().Equal(en.info.ModTime()) {
		if err := os.Chtimes(dst, en.info.ModTime(), en.info.ModTime()); err != nil {
			logging.Warn().Err(err).Str("path", dst).Msg("Failed to realign file mtime")
		}
	}
}

// copyFileContents copies the source file to a .partial sibling of dst
// and renames it into place, returning the content checksum and byte
// count. A written count of -1 means the source was skipped.
//
//nolint:gosec // G304: both paths derive from the validated target
func (c *copyRun) copyFileContents(ctx context.Context, en scanEntry, dst string) (string, int64, error) {
	src, err := os.Open(en.absPath)
	if err != nil {
		logging.Warn().Err(err).Str("path", en.relPath).Msg("Skipping unreadable file")
		c.job.Skipped = append(c.job.Skipped, SkippedEntry{
			Path:   en.relPath,
			Reason: fmt.Sprintf("unreadable: %v", err),
		})
		return "", -1, nil
	}
	defer func() { _ = src.Close() }()

	partial := dst + PartialSuffix
	out, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	hasher := sha256.New()
	written, copyErr := c.copyChunks(ctx, io.MultiWriter(out, hasher), src)
	if cerr := out.Close(); copyErr == nil && cerr != nil {
		copyErr = fmt.Errorf("%w: %v", ErrDestinationWrite, cerr)
	}
	if copyErr != nil {
		if rmErr := os.Remove(partial); rmErr != nil {
			logging.Warn().Err(rmErr).Str("path", partial).Msg("Failed to remove partial copy")
		}
		return "", written, copyErr
	}

	if err := os.Chmod(partial, en.info.Mode().Perm()); err != nil {
		logging.Warn().Err(err).Str("path", partial).Msg("Failed to set file mode")
	}
	// Replace whatever sits at dst so a file can take over a path that
	// used to be a symlink or directory entry.
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			removePartial(partial)
			return "", written, fmt.Errorf("%w: %v", ErrDestinationWrite, err)
		}
	}
	if err := os.Rename(partial, dst); err != nil {
		removePartial(partial)
		return "", written, fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := os.Chtimes(dst, en.info.ModTime(), en.info.ModTime()); err != nil {
		logging.Warn().Err(err).Str("path", dst).Msg("Failed to set file mtime")
	}
	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}

// copyChunks streams src into dst, polling for cancellation and applying
// the rate limit between chunks.
func (c *copyRun) copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var written int64
	for {
		if err := checkCancel(ctx, c.tok); err != nil {
			return written, err
		}
		n, rerr := src.Read(c.buf)
		if n > 0 {
			if c.throttle != nil {
				if err := c.throttle.WaitN(ctx, n); err != nil {
					return written, ErrCancelled
				}
			}
			wn, werr := dst.Write(c.buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("%w: %v", ErrDestinationWrite, werr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("failed to read source: %w", rerr)
		}
	}
}

// applyDirFixups restores directory modes and mtimes, children before
// parents.
func (c *copyRun) applyDirFixups() {
	for i := len(c.dirs) - 1; i >= 0; i-- {
		d := c.dirs[i]
		if err := os.Chmod(d.path, d.mode); err != nil {
			logging.Warn().Err(err).Str("path", d.path).Msg("Failed to mirror directory mode")
		}
		if err := os.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			logging.Warn().Err(err).Str("path", d.path).Msg("Failed to mirror directory mtime")
		}
	}
}

// removeExtras deletes mirror paths that no longer exist in the source.
// A directory that vanished entirely is removed as one subtree.
func (c *copyRun) removeExtras(ctx context.Context) error {
	var extras []string
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if cerr := checkCancel(ctx, c.tok); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == c.root {
				return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
			}
			logging.Warn().Err(err).Str("path", path).Msg("Failed to scan mirror entry")
			return nil
		}
		if path == c.root {
			return nil
		}
		if !c.keep[relTo(c.root, path)] {
			extras = append(extras, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range extras {
		if err := checkCancel(ctx, c.tok); err != nil {
			return err
		}
		if c.opts.Sink != nil {
			c.opts.Sink.Emit(progress.Event{
				JobID:   c.job.ID,
				Stage:   progress.StageCleanup,
				Message: relTo(c.root, path),
			})
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
		}
	}
	return nil
}
