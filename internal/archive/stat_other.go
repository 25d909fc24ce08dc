// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

//go:build !unix

package archive

import "io/fs"

// inodeKey identifies a file's physical identity for hardlink detection.
type inodeKey struct {
	dev uint64
	ino uint64
}

// statKey reports no inode identity on platforms without Stat_t; every
// file is stored in full and hardlinks are not deduplicated.
func statKey(_ fs.FileInfo) (inodeKey, bool) {
	return inodeKey{}, false
}
