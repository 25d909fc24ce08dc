// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package supervisor builds the daemon's suture/v4 supervision tree.
//
// The tree has three child layers under one root: store (history
// maintenance), jobs (per-target schedules), and telemetry (the HTTP
// listener). Supervisor events are logged through sutureslog into the
// application's zerolog output via the logging package's slog bridge.
package supervisor
