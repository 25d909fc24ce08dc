// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package main is the entry point for the inlocker command.
//
// InLocker is a local backup and restore engine. It packs a source
// directory tree into a streaming tar+zstd archive, optionally wrapped
// in AES-256-GCM with an Argon2id password-derived key, appends a
// SHA-256 integrity trailer, and can later reconstruct the original
// tree from the archive. Incremental backups pack only files that
// changed since the target's last successful run.
//
// # Commands
//
//	inlocker backup   [target ...] [--all]     run backup jobs
//	inlocker restore  ARCHIVE DEST             restore an archive
//	inlocker list     [target]                 list finished archives
//	inlocker verify   ARCHIVE                  check integrity, no extraction
//	inlocker history  [-n N]                   recent job records
//	inlocker daemon                            supervised scheduler
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): INLOCKER_* environment variables, the config file
// (config.yaml or INLOCKER_CONFIG), and built-in defaults. Backup
// targets are declared in the config file; see internal/config.
//
// # Passwords
//
// Encrypted targets need a password for every run. The CLI takes it
// from --password-file, the INLOCKER_PASSWORD environment variable, or
// the target's password_file setting, in that order. Passwords are
// never accepted on argv, never persisted, and never logged.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel running jobs cooperatively: each job stops
// at its next file or chunk boundary, removes its partial artifact, and
// reports the cancelled state before the process exits.
package main

import (
	"os"

	"github.com/beloureiro/inlocker/cmd/inlocker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
