// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package backup

import "errors"

// Sentinel errors returned by engine operations. Callers classify
// failures with errors.Is; the wrapped chain carries the detail.
var (
	// ErrSourceUnreadable reports that the source directory is missing or
	// cannot be opened at all. Per-file read failures inside a readable
	// tree are recorded as skipped entries instead.
	ErrSourceUnreadable = errors.New("source directory unreadable")

	// ErrDestinationWrite reports a failure to create or write the
	// backup artifact in the destination directory.
	ErrDestinationWrite = errors.New("destination write failed")

	// ErrChecksumMismatch reports that an archive's trailing SHA-256 does
	// not match its content, or does not match a caller-supplied value.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")

	// ErrAuthenticationFailed reports an AEAD tag failure while decoding
	// an encrypted archive: wrong password or corrupted data, deliberately
	// indistinguishable.
	ErrAuthenticationFailed = errors.New("authentication failed: wrong password or corrupted data")

	// ErrDecompressionLimit reports that decompressed output exceeded the
	// allowance derived from the archive size.
	ErrDecompressionLimit = errors.New("decompression limit exceeded")

	// ErrPathTraversal reports an archive entry that would land outside
	// the restore destination. The whole restore aborts.
	ErrPathTraversal = errors.New("archive entry escapes destination")

	// ErrCancelled reports that the operation was cancelled before it
	// completed. Partial artifacts have been removed.
	ErrCancelled = errors.New("operation cancelled")

	// ErrJobNotFound reports a job ID unknown to the engine.
	ErrJobNotFound = errors.New("job not found")

	// ErrTargetBusy reports that the target already has a job in flight.
	ErrTargetBusy = errors.New("target already has a job in flight")

	// ErrPasswordRequired reports an encrypted operation attempted
	// without a password.
	ErrPasswordRequired = errors.New("password required")

	// ErrInvalidArchive reports a file that is not a readable archive:
	// bad magic, unsupported version, or a damaged header or frame.
	ErrInvalidArchive = errors.New("invalid or corrupted archive")
)
