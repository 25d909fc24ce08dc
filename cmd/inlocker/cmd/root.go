// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package cmd implements the inlocker command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/beloureiro/inlocker/internal/config"
	"github.com/beloureiro/inlocker/internal/logging"
)

// Persistent flag values, bound before any subcommand runs.
var (
	flagConfig   string
	flagLogLevel string
)

// cfg is the loaded configuration, available to every subcommand after
// PersistentPreRunE.
var cfg *config.Config

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "inlocker",
	Short: "Local backup and restore engine",
	Long: `InLocker backs up directory trees into verified tar+zstd archives,
optionally encrypted with a password-derived key, and restores them
byte-for-byte. Targets are declared in config.yaml; see the config
file for source, destination, mode, and schedule settings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if flagConfig != "" {
			cfg, err = config.LoadFile(flagConfig)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}

		logCfg := logging.Config{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			Caller:    cfg.Logging.Caller,
			Timestamp: true,
		}
		if flagLogLevel != "" {
			logCfg.Level = flagLogLevel
		}
		// The daemon adds its rotating file output; interactive
		// commands stay on stderr.
		if cmd.Name() == "daemon" && cfg.Logging.File.Path != "" {
			logCfg.File = logging.FileConfig{
				Path:       cfg.Logging.File.Path,
				MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
				MaxBackups: cfg.Logging.File.MaxBackups,
				MaxAgeDays: cfg.Logging.File.MaxAgeDays,
				Compress:   cfg.Logging.File.Compress,
			}
		}
		logging.Init(logCfg)
		return nil
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path (overrides search paths)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
}

// Execute runs the command tree. Errors are already logged or printed
// by the failing command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logging.Error().Err(err).Msg("Command failed")
	}
	return err
}
