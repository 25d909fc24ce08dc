// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package config

import (
	"fmt"
	"time"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/validation"
)

// Config is the root configuration for the CLI and the daemon.
type Config struct {
	Logging LoggingConfig  `koanf:"logging"`
	Daemon  DaemonConfig   `koanf:"daemon"`
	Targets []TargetConfig `koanf:"targets" validate:"dive"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`

	// Format selects json or console output.
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`

	// Caller includes file:line in log events.
	Caller bool `koanf:"caller"`

	// File enables a rotating log file when Path is set. Used by the
	// daemon; interactive commands log to stderr only.
	File LogFileConfig `koanf:"file"`
}

// LogFileConfig configures the optional rotating log file.
type LogFileConfig struct {
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"min=0"`
	MaxBackups int    `koanf:"max_backups" validate:"min=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"min=0"`
	Compress   bool   `koanf:"compress"`
}

// DaemonConfig controls the long-running scheduler daemon.
type DaemonConfig struct {
	// Listen is the telemetry listener address (/healthz, /metrics,
	// /api/v1/status). Empty disables the listener.
	Listen string `koanf:"listen"`

	// HistoryPath is the directory for the BadgerDB job-history store.
	HistoryPath string `koanf:"history_path" validate:"required"`

	// HistoryRetentionDays prunes job records older than this. Zero
	// keeps records forever.
	HistoryRetentionDays int `koanf:"history_retention_days" validate:"min=0"`

	// GCInterval is how often the history store runs value-log GC and
	// retention pruning.
	GCInterval time.Duration `koanf:"gc_interval" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown of daemon services.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

// ScheduleConfig controls when the daemon backs up a target.
type ScheduleConfig struct {
	// Enabled turns scheduled backups on for the target.
	Enabled bool `koanf:"enabled"`

	// Interval between backups. Intervals of 24h or more run at
	// PreferredHour.
	Interval time.Duration `koanf:"interval" validate:"omitempty,min=1m"`

	// PreferredHour is the local hour of day (0-23) for daily and
	// longer intervals.
	PreferredHour int `koanf:"preferred_hour" validate:"min=0,max=23"`
}

// TargetConfig is one backup target as declared in the config file. It
// carries the engine's Target definition plus daemon-only settings.
type TargetConfig struct {
	Name           string `koanf:"name" validate:"required,targetname"`
	SourceDir      string `koanf:"source_dir" validate:"required"`
	DestinationDir string `koanf:"destination_dir" validate:"required"`
	Mode           string `koanf:"mode" validate:"required,oneof=copy compressed encrypted"`
	Type           string `koanf:"type" validate:"omitempty,oneof=full incremental"`

	// LimitBytesPerSec caps source read throughput. Zero is unlimited.
	LimitBytesPerSec int64 `koanf:"limit_bytes_per_sec" validate:"min=0"`

	// PasswordFile names a file whose first line is the encryption
	// password. Required for encrypted targets run by the daemon; the
	// CLI can prompt or take --password-file instead.
	PasswordFile string `koanf:"password_file"`

	Schedule ScheduleConfig `koanf:"schedule"`
}

// Target converts the declaration to the engine's immutable Target value.
func (t TargetConfig) Target() backup.Target {
	typ := backup.Type(t.Type)
	if t.Type == "" {
		typ = backup.TypeFull
	}
	return backup.Target{
		Name:             t.Name,
		SourceDir:        t.SourceDir,
		DestinationDir:   t.DestinationDir,
		Mode:             backup.Mode(t.Mode),
		Type:             typ,
		LimitBytesPerSec: t.LimitBytesPerSec,
	}
}

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
			File: LogFileConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 14,
			},
		},
		Daemon: DaemonConfig{
			Listen:               "127.0.0.1:9648",
			HistoryPath:          "/var/lib/inlocker/history",
			HistoryRetentionDays: 90,
			GCInterval:           10 * time.Minute,
			ShutdownTimeout:      10 * time.Second,
		},
	}
}

// Validate checks the whole configuration, including cross-field rules
// the struct tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	seen := make(map[string]int, len(c.Targets))
	for i, t := range c.Targets {
		if prev, dup := seen[t.Name]; dup {
			return fmt.Errorf("targets[%d]: name %q already used by targets[%d]", i, t.Name, prev)
		}
		seen[t.Name] = i

		if t.Mode != string(backup.ModeCopy) && t.Type == "" {
			return fmt.Errorf("targets[%d] (%s): type is required for mode %s", i, t.Name, t.Mode)
		}
		if t.Mode == string(backup.ModeEncrypted) && t.Schedule.Enabled && t.PasswordFile == "" {
			return fmt.Errorf("targets[%d] (%s): scheduled encrypted backups need password_file", i, t.Name)
		}
		if t.Schedule.Enabled && t.Schedule.Interval == 0 {
			return fmt.Errorf("targets[%d] (%s): schedule.interval is required when schedule is enabled", i, t.Name)
		}
	}
	return nil
}

// FindTarget returns the named target declaration.
func (c *Config) FindTarget(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}
