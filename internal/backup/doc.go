// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package backup implements the InLocker engine: full and incremental
// backups of local directory trees into single-file archives, plain
// directory mirroring, and hardened restore.
//
// # Overview
//
// The engine supports three target modes:
//
//	ModeCopy       - mirror the source tree into a plain directory
//	ModeCompressed - tar + zstd single-file archive
//	ModeEncrypted  - tar + zstd + AES-256-GCM single-file archive
//
// and two backup types:
//
//	TypeFull        - every file in the source tree
//	TypeIncremental - only files that are new or changed since the last
//	                  successful backup of the same target
//
// Incremental change detection is manifest-based: after every successful
// backup the engine records {size, mtime, sha256} per file. On the next
// incremental run a file whose size and mtime both match the manifest is
// re-hashed, and only a checksum difference forces it back into the
// archive. Touched-but-identical files are therefore skipped, and
// content changes that preserve size and mtime are still caught.
//
// # Archive format
//
// Archives are written as {name}_{type}_{timestamp}.tar.zst (or
// .tar.zst.enc when encrypted), timestamp layout 20060102-150405. The
// file starts with a small binary header, followed by the zstd-compressed
// tar stream (framed through AES-GCM in encrypted mode), and ends with a
// SHA-256 trailer over every preceding byte. In-flight archives carry a
// .partial suffix and are renamed into place only after the trailer is
// written and synced, so a crash never leaves a valid-looking torso.
//
// # Restore hardening
//
// Restore verifies the trailer checksum over the whole file before any
// decryption or decompression, using a constant-time comparison. Entry
// names are validated against absolute paths, parent-directory escapes
// and NUL bytes; symlink targets must stay inside the destination; and
// decompressed output is capped relative to the archive size so a
// decompression bomb aborts the restore instead of filling the disk.
// Any of these violations aborts the whole restore.
//
// # Cancellation
//
// Long operations poll a shared Token between files and between 1 MiB
// chunks inside large files. A cancelled backup removes its .partial
// artifact and leaves the previous manifest untouched; a cancelled
// restore removes the file it was extracting.
//
// # Usage
//
//	store := manifest.NewFileStore()
//	engine := backup.New(store)
//
//	job, err := engine.RunBackup(ctx, target, backup.BackupOptions{
//		Sink:  sink,
//		Token: token,
//	})
//
// The engine is safe for concurrent use; independent targets may run in
// parallel while I/O within a single job stays sequential.
package backup
