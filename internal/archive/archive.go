// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/* archive.go - Streaming tar builder

Serializes scanned entries into a POSIX tar (PAX) stream. File content is
copied in fixed-size chunks so memory stays bounded regardless of file
size, and every stored byte is hashed on the way through so the caller
gets the content checksum without a second read pass. Hardlinked files
sharing an inode are stored once; later occurrences become link entries
referencing the first.
*/
//nolint:staticcheck // File documentation, not package doc
package archive

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
)

// ChunkSize is the unit of streaming I/O. The chunk callback fires once
// per chunk, which is also the cancellation polling granularity.
const ChunkSize = 1 << 20

// FileResult describes how one regular file was stored.
type FileResult struct {
	// Written is the number of content bytes stored for this entry.
	Written int64
	// Checksum is the hex SHA-256 of the stored content. Empty when the
	// entry was stored as a hardlink reference.
	Checksum string
	// LinkedTo names the earlier entry this file was hardlinked to, if any.
	LinkedTo string
	// Truncated reports that the source shrank between stat and read; the
	// stored content was zero-padded to the declared size.
	Truncated bool
}

// Writer emits a tar stream of backup entries.
type Writer struct {
	tw    *tar.Writer
	buf   []byte
	links map[inodeKey]string
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		tw:    tar.NewWriter(w),
		buf:   make([]byte, ChunkSize),
		links: make(map[inodeKey]string),
	}
}

// WriteDir stores a directory entry. Only empty directories need explicit
// entries; parents of files are recreated implicitly on restore.
func (w *Writer) WriteDir(relPath string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", relPath, err)
	}
	hdr.Name = relPath + "/"
	hdr.Format = tar.FormatPAX
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write dir header for %s: %w", relPath, err)
	}
	return nil
}

// WriteSymlink stores a symlink entry with its literal target string.
// The target is never followed.
func (w *Writer) WriteSymlink(relPath, target string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, target)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", relPath, err)
	}
	hdr.Name = relPath
	hdr.Format = tar.FormatPAX
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write symlink header for %s: %w", relPath, err)
	}
	return nil
}

// WriteFile stores a regular file, streaming its content from src in
// ChunkSize units. The caller opens src so it can decide what an open
// failure means; no header is emitted until the source is readable.
// onChunk runs before each chunk read with the number of bytes about to
// be read, and may return an error to abort; callers use it for
// cancellation polling and rate limiting. If the inode was already
// stored in this archive, a hardlink entry is written instead of a
// second copy and src goes unread.
func (w *Writer) WriteFile(relPath string, src io.Reader, info fs.FileInfo, onChunk func(next int64) error) (FileResult, error) {
	if key, linked := statKey(info); linked {
		if first, seen := w.links[key]; seen {
			return w.writeHardlink(relPath, first, info)
		}
		w.links[key] = relPath
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to build header for %s: %w", relPath, err)
	}
	hdr.Name = relPath
	hdr.Format = tar.FormatPAX
	if err := w.tw.WriteHeader(hdr); err != nil {
		return FileResult{}, fmt.Errorf("failed to write file header for %s: %w", relPath, err)
	}

	return w.copyContent(relPath, src, hdr.Size, onChunk)
}

// copyContent streams exactly size bytes into the current tar entry,
// hashing as it goes. A source that shrank mid-read is zero-padded to the
// declared size so the archive stays structurally valid.
func (w *Writer) copyContent(relPath string, f io.Reader, size int64, onChunk func(next int64) error) (FileResult, error) {
	h := sha256.New()
	res := FileResult{}
	remaining := size

	for remaining > 0 {
		n := int64(len(w.buf))
		if remaining < n {
			n = remaining
		}
		if onChunk != nil {
			if err := onChunk(n); err != nil {
				return res, err
			}
		}
		read, err := f.Read(w.buf[:n])
		if read > 0 {
			if _, werr := w.tw.Write(w.buf[:read]); werr != nil {
				return res, fmt.Errorf("failed to write content of %s: %w", relPath, werr)
			}
			_, _ = h.Write(w.buf[:read])
			res.Written += int64(read)
			remaining -= int64(read)
		}
		if err == io.EOF {
			if remaining > 0 {
				if perr := w.padZero(h, remaining); perr != nil {
					return res, fmt.Errorf("failed to pad %s: %w", relPath, perr)
				}
				res.Written += remaining
				res.Truncated = true
				remaining = 0
			}
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read %s: %w", relPath, err)
		}
	}

	res.Checksum = hex.EncodeToString(h.Sum(nil))
	return res, nil
}

// padZero writes n zero bytes to the current entry and the hash.
func (w *Writer) padZero(h io.Writer, n int64) error {
	zero := make([]byte, ChunkSize)
	for n > 0 {
		c := int64(len(zero))
		if n < c {
			c = n
		}
		if _, err := w.tw.Write(zero[:c]); err != nil {
			return err
		}
		_, _ = h.Write(zero[:c])
		n -= c
	}
	return nil
}

// writeHardlink stores a link entry referencing an earlier file.
func (w *Writer) writeHardlink(relPath, first string, info fs.FileInfo) (FileResult, error) {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to build header for %s: %w", relPath, err)
	}
	hdr.Name = relPath
	hdr.Typeflag = tar.TypeLink
	hdr.Linkname = first
	hdr.Size = 0
	hdr.Format = tar.FormatPAX
	if err := w.tw.WriteHeader(hdr); err != nil {
		return FileResult{}, fmt.Errorf("failed to write hardlink header for %s: %w", relPath, err)
	}
	return FileResult{LinkedTo: first}, nil
}

// Close finalizes the tar stream (required for a readable archive).
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive stream: %w", err)
	}
	return nil
}
