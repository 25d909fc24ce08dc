// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

//go:build unix

package archive

import (
	"io/fs"
	"syscall"
)

// inodeKey identifies a file's physical identity for hardlink detection.
type inodeKey struct {
	dev uint64
	ino uint64
}

// statKey extracts the inode identity of a file. The second return value
// is true only when the file has multiple links, i.e. hardlink tracking
// is worthwhile.
func statKey(info fs.FileInfo) (inodeKey, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return inodeKey{}, false
	}
	//nolint:unconvert // Stat_t field widths differ between unix platforms
	return inodeKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}, uint64(st.Nlink) > 1
}
