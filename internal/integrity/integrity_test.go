// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package integrity

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Digest of the empty input, a fixed SHA-256 vector.
const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Digest of "abc", a fixed SHA-256 vector.
const abcDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestChecksumReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty input", input: "", want: emptyDigest},
		{name: "known vector", input: "abc", want: abcDigest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChecksumReader(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ChecksumReader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ChecksumReader() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChecksumFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	content := bytes.Repeat([]byte{0xAB, 0xCD}, 3<<20) // spans multiple read buffers
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	fromFile, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile() error = %v", err)
	}
	fromReader, err := ChecksumReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ChecksumReader() error = %v", err)
	}
	if fromFile != fromReader {
		t.Errorf("file and reader digests disagree: %s vs %s", fromFile, fromReader)
	}
}

func TestChecksumFileMissing(t *testing.T) {
	if _, err := ChecksumFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("ChecksumFile() on missing file should fail")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{name: "equal digests", expected: abcDigest, actual: abcDigest, want: true},
		{name: "different digests", expected: abcDigest, actual: emptyDigest, want: false},
		{name: "case insensitive hex", expected: strings.ToUpper(abcDigest), actual: abcDigest, want: true},
		{name: "truncated actual", expected: abcDigest, actual: abcDigest[:32], want: false},
		{name: "non-hex expected", expected: "zz7816bf", actual: abcDigest, want: false},
		{name: "both empty", expected: "", actual: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.expected, tt.actual); got != tt.want {
				t.Errorf("Verify(%q, %q) = %v, want %v", tt.expected, tt.actual, got, tt.want)
			}
		})
	}
}

func TestVerifyRaw(t *testing.T) {
	raw := []byte{
		0xba, 0x78, 0x16, 0xbf, 0x8f, 0x01, 0xcf, 0xea,
		0x41, 0x41, 0x40, 0xde, 0x5d, 0xae, 0x22, 0x23,
		0xb0, 0x03, 0x61, 0xa3, 0x96, 0x17, 0x7a, 0x9c,
		0xb4, 0x10, 0xff, 0x61, 0xf2, 0x00, 0x15, 0xad,
	}
	if !VerifyRaw(abcDigest, raw) {
		t.Error("VerifyRaw() rejected a matching digest")
	}
	raw[0] ^= 0xFF
	if VerifyRaw(abcDigest, raw) {
		t.Error("VerifyRaw() accepted a corrupted digest")
	}
}
