// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package integrity computes SHA-256 content checksums and performs
// constant-time digest comparison. Checksums are hex-encoded; comparison
// time does not depend on the position of the first differing byte.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// bufferSize is the read buffer used for hashing. Large enough that
// hashing multi-gigabyte artifacts is I/O bound, not syscall bound.
const bufferSize = 1 << 20

// ChecksumReader hashes everything readable from r and returns the
// hex-encoded SHA-256 digest.
func ChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumFile returns the hex-encoded SHA-256 digest of the file at path.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer func() { _ = f.Close() }()

	sum, err := ChecksumReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return sum, nil
}

// Verify compares two hex-encoded digests in constant time.
// Malformed or different-length inputs compare unequal; digest length is
// not secret, only content is.
func Verify(expected, actual string) bool {
	e, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	a, err := hex.DecodeString(actual)
	if err != nil {
		return false
	}
	if len(e) != len(a) {
		return false
	}
	return subtle.ConstantTimeCompare(e, a) == 1
}

// VerifyRaw compares a raw digest against a hex-encoded expected value in
// constant time.
func VerifyRaw(expected string, actual []byte) bool {
	return Verify(expected, hex.EncodeToString(actual))
}
