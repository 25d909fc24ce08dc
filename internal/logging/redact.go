// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package logging

import "strings"

// Redaction keeps encryption passwords and related secrets out of log
// output. Values are replaced wholesale; partial masking of a password
// still leaks information about it.

// redactedValue replaces any secret in log output.
const redactedValue = "[redacted]"

// secretFlags are CLI flags whose values must never appear in logs. The
// flags themselves remain visible so an operator can see what was set.
var secretFlags = map[string]bool{
	"--password": true,
	"-p":         true,
}

// secretEnvMarkers flag environment keys whose values are secrets.
var secretEnvMarkers = []string{"PASSWORD", "SECRET", "TOKEN"}

// RedactSecret returns a safe replacement for a secret value. Empty
// stays empty so presence/absence remains visible.
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	return redactedValue
}

// RedactArgs returns a copy of a command line safe for logging: values
// of secret flags are replaced, both in "--password value" and
// "--password=value" form.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	skipNext := false
	for i, arg := range args {
		if skipNext {
			out[i] = redactedValue
			skipNext = false
			continue
		}
		if flag, _, found := strings.Cut(arg, "="); found && secretFlags[flag] {
			out[i] = flag + "=" + redactedValue
			continue
		}
		if secretFlags[arg] {
			out[i] = arg
			skipNext = true
			continue
		}
		out[i] = arg
	}
	return out
}

// RedactEnv returns a copy of "KEY=VALUE" pairs safe for logging: values
// of keys containing PASSWORD, SECRET, or TOKEN are replaced.
func RedactEnv(environ []string) []string {
	out := make([]string, len(environ))
	for i, kv := range environ {
		key, value, found := strings.Cut(kv, "=")
		if !found || value == "" {
			out[i] = kv
			continue
		}
		if isSecretEnvKey(key) {
			out[i] = key + "=" + redactedValue
			continue
		}
		out[i] = kv
	}
	return out
}

func isSecretEnvKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range secretEnvMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
