// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
restore.go - Archive Verification and Extraction

Restore runs in two passes over the archive file:

 1. Verify: hash everything before the trailer and compare against the
    trailer (and the caller's expected checksum, when given) in constant
    time. Nothing is decrypted, decompressed, or extracted until the
    bytes are proven intact.
 2. Extract: decode the header, stack the cipher and decompressor the
    way the backup stacked them, and stream the tar entries into the
    destination.

Every entry name is validated before it touches the filesystem: absolute
paths, parent-directory components, and NUL bytes abort the whole
restore, as does a symlink whose target resolves outside the
destination. Decompressed output is capped relative to the archive size
so a crafted archive cannot fill the disk.

Directories are created writable and receive their archived mode and
mtime in a reverse-order pass at the end, so read-only directories do
not block their own contents.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beloureiro/inlocker/internal/archive"
	"github.com/beloureiro/inlocker/internal/compress"
	"github.com/beloureiro/inlocker/internal/crypt"
	"github.com/beloureiro/inlocker/internal/integrity"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/metrics"
	"github.com/beloureiro/inlocker/internal/progress"
)

// minArchiveSize is the smallest well-formed archive: the fixed header
// plus the trailer.
const minArchiveSize = 6 + TrailerSize

// dirFixup records a directory whose archived mode and mtime are applied
// after extraction finishes.
type dirFixup struct {
	path  string
	mode  os.FileMode
	mtime time.Time
}

// restoreRun carries the state of one extraction through the entry loop.
type restoreRun struct {
	dest       string
	destPrefix string
	sink       progress.Sink
	jobID      string
	tok        *Token
	buf        []byte

	dirs  []dirFixup
	files int
	bytes int64
}

// runRestore executes one restore job: verify, then extract.
//
//nolint:gosec // G304: the archive path is caller-chosen by design
func (e *Engine) runRestore(ctx context.Context, req RestoreRequest, job *Job, tok *Token) (*RestoreResult, error) {
	f, err := os.Open(req.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	size := fi.Size()
	if size < minArchiveSize {
		return nil, fmt.Errorf("%w: file too short", ErrInvalidArchive)
	}

	if req.Sink != nil {
		req.Sink.Emit(progress.Event{
			JobID: job.ID,
			Stage: progress.StageVerify,
			Total: size,
		})
	}
	checksum, err := verifyTrailer(ctx, tok, f, size, req.ExpectedChecksum)
	if err != nil {
		return nil, err
	}
	job.ArchivePath = req.ArchivePath
	job.Checksum = checksum
	if req.Sink != nil {
		req.Sink.Emit(progress.Event{
			JobID:   job.ID,
			Stage:   progress.StageVerify,
			Message: "checksum verified",
			Current: size,
			Total:   size,
		})
	}

	bodySize := size - TrailerSize
	section := io.NewSectionReader(f, 0, bodySize)
	hdr, headerLen, err := decodeHeader(section)
	if err != nil {
		return nil, err
	}

	var body io.Reader = section
	if hdr.mode == wireModeEncrypted {
		if req.Password == "" {
			return nil, ErrPasswordRequired
		}
		key, err := crypt.DeriveKey(req.Password, *hdr.params)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
		sr, err := crypt.NewStreamReader(section, key, hdr.params.NoncePrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to start cipher stream: %w", err)
		}
		body = sr
	}

	zr, err := compress.NewReader(body)
	if err != nil {
		return nil, classifyDecodeErr(err)
	}
	defer zr.Close()

	limited := compress.NewLimitedReader(zr, e.expansionLimit(bodySize-headerLen))
	tr := tar.NewReader(limited)

	dest := filepath.Clean(req.Destination)
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	run := &restoreRun{
		dest:       dest,
		destPrefix: dest + string(os.PathSeparator),
		sink:       req.Sink,
		jobID:      job.ID,
		tok:        tok,
		buf:        make([]byte, archive.ChunkSize),
	}
	if err := run.extractAll(ctx, tr); err != nil {
		return nil, err
	}
	run.applyDirFixups()

	job.FilesPacked = run.files
	job.OriginalBytes = run.bytes
	return &RestoreResult{
		JobID:         job.ID,
		FilesRestored: run.files,
		BytesWritten:  run.bytes,
	}, nil
}

// VerifyArchive checks an archive without extracting it: the trailing
// SHA-256 must match the content and the header must decode. Returns the
// hex trailer checksum. Encrypted bodies are not decrypted; a password
// is not needed.
//
//nolint:gosec // G304: the archive path is caller-chosen by design
func (e *Engine) VerifyArchive(ctx context.Context, archivePath string) (sum string, err error) {
	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, ErrChecksumMismatch):
			result = "mismatch"
		case err != nil:
			result = "invalid"
		}
		metrics.VerificationsTotal.WithLabelValues(result).Inc()
	}()

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}
	if fi.Size() < minArchiveSize {
		return "", fmt.Errorf("%w: file too short", ErrInvalidArchive)
	}

	sum, err = verifyTrailer(ctx, nil, f, fi.Size(), "")
	if err != nil {
		return "", err
	}
	if _, _, err := decodeHeader(io.NewSectionReader(f, 0, fi.Size()-TrailerSize)); err != nil {
		return "", err
	}
	return sum, nil
}

// verifyTrailer hashes the archive body and compares it against the
// stored trailer, and optionally against a caller-supplied checksum.
// Returns the hex digest on success.
func verifyTrailer(ctx context.Context, tok *Token, f *os.File, size int64, expected string) (string, error) {
	bodySize := size - TrailerSize
	digest, err := hashSection(ctx, tok, io.NewSectionReader(f, 0, bodySize), bodySize)
	if err != nil {
		return "", err
	}
	trailer := make([]byte, TrailerSize)
	if _, err := f.ReadAt(trailer, bodySize); err != nil {
		return "", fmt.Errorf("%w: short trailer", ErrInvalidArchive)
	}

	sum := hex.EncodeToString(digest)
	if !integrity.VerifyRaw(sum, trailer) {
		return "", fmt.Errorf("%w: content does not match trailer", ErrChecksumMismatch)
	}
	if expected != "" && !integrity.Verify(expected, sum) {
		return "", fmt.Errorf("%w: trailer does not match expected value", ErrChecksumMismatch)
	}
	return sum, nil
}

// hashSection hashes exactly n bytes from r, polling for cancellation
// between chunks.
func hashSection(ctx context.Context, tok *Token, r io.Reader, n int64) ([]byte, error) {
	h := sha256.New()
	buf := make([]byte, archive.ChunkSize)
	var done int64
	for done < n {
		if err := checkCancel(ctx, tok); err != nil {
			return nil, err
		}
		chunk := int64(len(buf))
		if rem := n - done; rem < chunk {
			chunk = rem
		}
		if _, err := io.ReadFull(r, buf[:chunk]); err != nil {
			return nil, fmt.Errorf("%w: short read at offset %d", ErrInvalidArchive, done)
		}
		h.Write(buf[:chunk])
		done += chunk
	}
	return h.Sum(nil), nil
}

// classifyDecodeErr maps failures surfacing through the decode stack
// onto the package's sentinel errors.
func classifyDecodeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled),
		errors.Is(err, ErrPathTraversal),
		errors.Is(err, ErrDestinationWrite):
		return err
	case errors.Is(err, crypt.ErrAuthenticationFailed):
		return ErrAuthenticationFailed
	case errors.Is(err, crypt.ErrCorruptStream):
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	case errors.Is(err, compress.ErrSizeLimitExceeded):
		return fmt.Errorf("%w: %v", ErrDecompressionLimit, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
}

// extractAll walks the tar stream and materializes every entry.
func (r *restoreRun) extractAll(ctx context.Context, tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classifyDecodeErr(err)
		}
		if err := checkCancel(ctx, r.tok); err != nil {
			return err
		}
		if err := r.extractEntry(ctx, tr, hdr); err != nil {
			return err
		}
	}
}

// extractEntry dispatches one tar entry to its type-specific handler.
func (r *restoreRun) extractEntry(ctx context.Context, tr *tar.Reader, hdr *tar.Header) error {
	destPath, err := r.destPathFor(hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return r.restoreDir(hdr, destPath)
	case tar.TypeReg:
		r.emit(progress.StageExtract, hdr.Name)
		return r.restoreFile(ctx, tr, hdr, destPath)
	case tar.TypeSymlink:
		return r.restoreSymlink(hdr, destPath)
	case tar.TypeLink:
		return r.restoreHardlink(hdr, destPath)
	default:
		logging.Warn().Str("path", hdr.Name).Msg("Skipping unsupported archive entry type")
		return nil
	}
}

// destPathFor validates an entry name and maps it into the destination.
func (r *restoreRun) destPathFor(name string) (string, error) {
	if err := validateEntryName(name); err != nil {
		return "", err
	}
	destPath := filepath.Join(r.dest, filepath.FromSlash(name))
	if destPath != r.dest && !strings.HasPrefix(destPath, r.destPrefix) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	return destPath, nil
}

// validateEntryName rejects names that could place content outside the
// restore destination: absolute paths, parent-directory components, and
// NUL bytes.
func validateEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty entry name", ErrInvalidArchive)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: entry name contains NUL", ErrInvalidArchive)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: absolute path %q", ErrPathTraversal, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return fmt.Errorf("%w: %q", ErrPathTraversal, name)
		}
	}
	return nil
}

// validateLinkTarget ensures a symlink written under the destination
// cannot point outside it. The target is resolved lexically against the
// link's own directory.
func (r *restoreRun) validateLinkTarget(name, target string) error {
	if target == "" || strings.ContainsRune(target, 0) {
		return fmt.Errorf("%w: bad link target in %q", ErrInvalidArchive, name)
	}
	if filepath.IsAbs(target) {
		return fmt.Errorf("%w: %q -> %q", ErrPathTraversal, name, target)
	}
	linkDir := filepath.Dir(filepath.Join(r.dest, filepath.FromSlash(name)))
	resolved := filepath.Join(linkDir, filepath.FromSlash(target))
	if resolved != r.dest && !strings.HasPrefix(resolved, r.destPrefix) {
		return fmt.Errorf("%w: %q -> %q", ErrPathTraversal, name, target)
	}
	return nil
}

// restoreDir creates a directory writable and queues its archived mode
// and mtime for the fixup pass.
func (r *restoreRun) restoreDir(hdr *tar.Header, destPath string) error {
	// A symlink squatting where a directory belongs would redirect
	// every child entry; replace it.
	if fi, err := os.Lstat(destPath); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
		}
	}
	if err := os.MkdirAll(destPath, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	r.dirs = append(r.dirs, dirFixup{
		path:  destPath,
		mode:  hdr.FileInfo().Mode().Perm(),
		mtime: hdr.ModTime,
	})
	return nil
}

// restoreFile writes one regular file. The file in flight is removed on
// any failure so an aborted restore never leaves a truncated artifact.
//
//nolint:gosec // G304: destPath is validated against the destination prefix
func (r *restoreRun) restoreFile(ctx context.Context, tr *tar.Reader, hdr *tar.Header, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	// Never write through whatever is already at the path; a stale
	// symlink would redirect the content outside the destination.
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}

	written, copyErr := r.copyEntry(ctx, out, tr)
	r.bytes += written
	if cerr := out.Close(); copyErr == nil && cerr != nil {
		copyErr = fmt.Errorf("%w: %v", ErrDestinationWrite, cerr)
	}
	if copyErr != nil {
		if rmErr := os.Remove(destPath); rmErr != nil {
			logging.Warn().Err(rmErr).Str("path", destPath).Msg("Failed to remove partial file")
		}
		return copyErr
	}

	if err := os.Chmod(destPath, hdr.FileInfo().Mode().Perm()); err != nil {
		logging.Warn().Err(err).Str("path", destPath).Msg("Failed to restore file mode")
	}
	if err := os.Chtimes(destPath, hdr.ModTime, hdr.ModTime); err != nil {
		logging.Warn().Err(err).Str("path", destPath).Msg("Failed to restore file mtime")
	}
	r.files++
	return nil
}

// copyEntry streams one entry's content, polling for cancellation
// between chunks.
func (r *restoreRun) copyEntry(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var written int64
	for {
		if err := checkCancel(ctx, r.tok); err != nil {
			return written, err
		}
		n, rerr := src.Read(r.buf)
		if n > 0 {
			wn, werr := dst.Write(r.buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("%w: %v", ErrDestinationWrite, werr)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, classifyDecodeErr(rerr)
		}
	}
}

// restoreSymlink recreates a symlink after validating its target.
func (r *restoreRun) restoreSymlink(hdr *tar.Header, destPath string) error {
	if err := r.validateLinkTarget(hdr.Name, hdr.Linkname); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := os.Symlink(hdr.Linkname, destPath); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	return nil
}

// restoreHardlink links destPath to an already-extracted file. The
// archive always stores the content under the first of the linked paths.
func (r *restoreRun) restoreHardlink(hdr *tar.Header, destPath string) error {
	linkSrc, err := r.destPathFor(hdr.Linkname)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	if err := os.Link(linkSrc, destPath); err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationWrite, err)
	}
	r.files++
	return nil
}

// applyDirFixups restores directory modes and mtimes, children before
// parents so a read-only parent is finalized last.
func (r *restoreRun) applyDirFixups() {
	for i := len(r.dirs) - 1; i >= 0; i-- {
		d := r.dirs[i]
		if err := os.Chmod(d.path, d.mode); err != nil {
			logging.Warn().Err(err).Str("path", d.path).Msg("Failed to restore directory mode")
		}
		if err := os.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			logging.Warn().Err(err).Str("path", d.path).Msg("Failed to restore directory mtime")
		}
	}
}

// emit sends a progress event when a sink is attached.
func (r *restoreRun) emit(stage progress.Stage, msg string) {
	if r.sink == nil {
		return
	}
	r.sink.Emit(progress.Event{
		JobID:   r.jobID,
		Stage:   stage,
		Message: msg,
		Current: r.bytes,
	})
}
