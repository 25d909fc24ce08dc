// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package config

import (
	"fmt"
	"os"
	"strings"
)

// ReadPasswordFile reads an encryption password from a file: the first
// line, with surrounding whitespace trimmed. The file should be
// readable only by the user running InLocker; its content is never
// logged.
func ReadPasswordFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator's own config
	if err != nil {
		return "", fmt.Errorf("failed to read password file: %w", err)
	}
	password, _, _ := strings.Cut(string(data), "\n")
	password = strings.TrimSpace(password)
	if password == "" {
		return "", fmt.Errorf("password file %s is empty", path)
	}
	return password, nil
}
