// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package archive

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readAll decodes the tar stream into header/content pairs keyed by name.
type tarEntry struct {
	header  *tar.Header
	content []byte
}

func readArchive(t *testing.T, data []byte) map[string]tarEntry {
	t.Helper()
	entries := make(map[string]tarEntry)
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read archive: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", hdr.Name, err)
		}
		entries[hdr.Name] = tarEntry{header: hdr, content: content}
	}
	return entries
}

func mustLstat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat %s: %v", path, err)
	}
	return info
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := []byte("the quick brown fox\n")
	filePath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(filePath, content, 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Chmod bypasses the process umask, keeping the mode assertion stable.
	if err := os.Chmod(filePath, 0o640); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "emptydir"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink("notes.txt", filepath.Join(dir, "alias")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	res, err := w.WriteFile("notes.txt", mustOpen(t, filePath), mustLstat(t, filePath), nil)
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if res.Written != int64(len(content)) {
		t.Errorf("Written = %d, want %d", res.Written, len(content))
	}
	wantSum := sha256.Sum256(content)
	if res.Checksum != hex.EncodeToString(wantSum[:]) {
		t.Errorf("Checksum = %s, want %s", res.Checksum, hex.EncodeToString(wantSum[:]))
	}

	if err := w.WriteDir("emptydir", mustLstat(t, filepath.Join(dir, "emptydir"))); err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}
	if err := w.WriteSymlink("alias", "notes.txt", mustLstat(t, filepath.Join(dir, "alias"))); err != nil {
		t.Fatalf("WriteSymlink() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readArchive(t, buf.Bytes())

	file, ok := entries["notes.txt"]
	if !ok {
		t.Fatal("archive missing notes.txt")
	}
	if file.header.Typeflag != tar.TypeReg {
		t.Errorf("notes.txt typeflag = %v", file.header.Typeflag)
	}
	if !bytes.Equal(file.content, content) {
		t.Errorf("notes.txt content mismatch")
	}
	if file.header.Mode&0o777 != 0o640 {
		t.Errorf("notes.txt mode = %o, want 640", file.header.Mode&0o777)
	}

	d, ok := entries["emptydir/"]
	if !ok {
		t.Fatal("archive missing emptydir/")
	}
	if d.header.Typeflag != tar.TypeDir {
		t.Errorf("emptydir typeflag = %v", d.header.Typeflag)
	}

	link, ok := entries["alias"]
	if !ok {
		t.Fatal("archive missing alias")
	}
	if link.header.Typeflag != tar.TypeSymlink {
		t.Errorf("alias typeflag = %v", link.header.Typeflag)
	}
	if link.header.Linkname != "notes.txt" {
		t.Errorf("alias target = %s, want notes.txt", link.header.Linkname)
	}
}

func TestWriterHardlinkDedup(t *testing.T) {
	dir := t.TempDir()
	content := []byte("shared inode content")
	first := filepath.Join(dir, "first.bin")
	second := filepath.Join(dir, "second.bin")
	if err := os.WriteFile(first, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Link(first, second); err != nil {
		t.Skipf("hardlinks unsupported here: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	r1, err := w.WriteFile("first.bin", mustOpen(t, first), mustLstat(t, first), nil)
	if err != nil {
		t.Fatalf("WriteFile(first) error = %v", err)
	}
	if r1.LinkedTo != "" {
		t.Errorf("first occurrence should be stored in full, got link to %s", r1.LinkedTo)
	}

	r2, err := w.WriteFile("second.bin", mustOpen(t, second), mustLstat(t, second), nil)
	if err != nil {
		t.Fatalf("WriteFile(second) error = %v", err)
	}
	if r2.LinkedTo != "first.bin" {
		t.Errorf("LinkedTo = %q, want first.bin", r2.LinkedTo)
	}
	if r2.Written != 0 {
		t.Errorf("hardlink entry stored %d content bytes", r2.Written)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	e2, ok := entries["second.bin"]
	if !ok {
		t.Fatal("archive missing second.bin")
	}
	if e2.header.Typeflag != tar.TypeLink {
		t.Errorf("second.bin typeflag = %v, want TypeLink", e2.header.Typeflag)
	}
	if e2.header.Linkname != "first.bin" {
		t.Errorf("second.bin linkname = %s", e2.header.Linkname)
	}
	if len(e2.content) != 0 {
		t.Errorf("hardlink entry carries %d content bytes", len(e2.content))
	}
}

func TestWriterChunkCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	size := 2*ChunkSize + 512
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x5A}, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	calls := 0
	var announced int64
	res, err := w.WriteFile("big.bin", mustOpen(t, path), mustLstat(t, path), func(next int64) error {
		calls++
		announced += next
		if next <= 0 || next > ChunkSize {
			t.Errorf("chunk callback announced %d bytes", next)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if res.Written != int64(size) {
		t.Errorf("Written = %d, want %d", res.Written, size)
	}
	if calls < 3 {
		t.Errorf("chunk callback fired %d times, want at least 3", calls)
	}
	if announced != int64(size) {
		t.Errorf("callback announced %d bytes total, want %d", announced, size)
	}
}

func TestWriterChunkCallbackAborts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{1}, ChunkSize*2), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	stop := errors.New("stop now")
	calls := 0
	_, err := w.WriteFile("big.bin", mustOpen(t, path), mustLstat(t, path), func(int64) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("WriteFile() error = %v, want the callback error", err)
	}
}

func TestWriterPadsShrunkenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shrink.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{7}, 4096), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	staleInfo := mustLstat(t, path)
	if err := os.Truncate(path, 1024); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	res, err := w.WriteFile("shrink.bin", mustOpen(t, path), staleInfo, nil)
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated flag not set for a shrunken source")
	}
	if res.Written != 4096 {
		t.Errorf("Written = %d, want padded 4096", res.Written)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	e, ok := entries["shrink.bin"]
	if !ok {
		t.Fatal("archive missing shrink.bin")
	}
	if len(e.content) != 4096 {
		t.Fatalf("stored %d bytes, want 4096", len(e.content))
	}
	for _, b := range e.content[1024:] {
		if b != 0 {
			t.Fatal("padding bytes are not zero")
		}
	}
}

func TestWriterDeepAndUnicodePaths(t *testing.T) {
	dir := t.TempDir()
	deep := strings.Repeat("d/", 120) + "leaf é家\U0001F4BE.txt"
	content := []byte("deep unicode")

	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.WriteFile(deep, mustOpen(t, path), mustLstat(t, path), nil); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	e, ok := entries[deep]
	if !ok {
		t.Fatalf("archive missing deep unicode path")
	}
	if !bytes.Equal(e.content, content) {
		t.Error("deep entry content mismatch")
	}
}
