// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"os"

	"github.com/beloureiro/inlocker/internal/config"
)

// passwordEnvVar supplies the encryption password when no password file
// is given. It is read directly, never through the config layers, so it
// cannot end up in a dumped configuration.
const passwordEnvVar = "INLOCKER_PASSWORD"

// resolvePassword finds the password for one run, in order: the
// --password-file flag, the INLOCKER_PASSWORD environment variable,
// then the target's configured password_file. Returns "" when none is
// set; the engine rejects encrypted runs without a password.
func resolvePassword(flagFile, targetFile string) (string, error) {
	if flagFile != "" {
		return config.ReadPasswordFile(flagFile)
	}
	if password := os.Getenv(passwordEnvVar); password != "" {
		return password, nil
	}
	if targetFile != "" {
		return config.ReadPasswordFile(targetFile)
	}
	return "", nil
}
