// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package config loads and validates the InLocker configuration.
//
// Configuration is layered with Koanf v2, highest priority last:
//
//  1. Built-in defaults (struct values)
//  2. Config file (config.yaml, searched in DefaultConfigPaths, or the
//     path named by the INLOCKER_CONFIG environment variable)
//  3. Environment variables with the INLOCKER_ prefix
//
// Backup targets are defined in the config file only; environment
// variables override scalar settings (logging, daemon) but cannot
// express the targets list.
package config
