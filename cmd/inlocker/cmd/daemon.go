// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/config"
	"github.com/beloureiro/inlocker/internal/history"
	"github.com/beloureiro/inlocker/internal/logging"
	"github.com/beloureiro/inlocker/internal/manifest"
	"github.com/beloureiro/inlocker/internal/metrics"
	"github.com/beloureiro/inlocker/internal/scheduler"
	"github.com/beloureiro/inlocker/internal/supervisor"
	"github.com/beloureiro/inlocker/internal/telemetry"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the supervised backup scheduler",
	Long: `Run InLocker headlessly: every target with an enabled schedule is
backed up on its interval, finished jobs are recorded to the history
store, and a localhost telemetry listener serves /healthz, /metrics,
and /api/v1/status. Services run under a suture supervision tree;
SIGINT and SIGTERM shut the daemon down gracefully, cancelling any
in-flight jobs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDaemon(cmd.Context(), cfg)
	},
}

func runDaemon(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init(Version)

	store, err := history.Open(cfg.Daemon.HistoryPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("History store close failed")
		}
	}()

	engine := backup.New(manifest.NewFileStore())

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Daemon.ShutdownTimeout,
	})

	// Store layer: history retention and Badger value-log GC.
	retention := time.Duration(cfg.Daemon.HistoryRetentionDays) * 24 * time.Hour
	tree.AddStoreService(history.NewGCService(store, cfg.Daemon.GCInterval, retention))

	// Jobs layer: one schedule service per enabled target.
	scheduled := 0
	for _, tc := range cfg.Targets {
		if !tc.Schedule.Enabled {
			continue
		}
		entry := scheduler.Entry{
			Target:        tc.Target(),
			Interval:      tc.Schedule.Interval,
			PreferredHour: tc.Schedule.PreferredHour,
		}
		if passwordFile := tc.PasswordFile; passwordFile != "" {
			entry.Password = func() (string, error) {
				return config.ReadPasswordFile(passwordFile)
			}
		}
		tree.AddJobService(scheduler.New(engine, entry,
			scheduler.WithRecorder(func(job *backup.Job) {
				rec := history.Record{Kind: "backup", Job: *job}
				if err := store.Append(rec); err != nil {
					logging.Error().Err(err).Str("job_id", job.ID).Msg("History append failed")
				}
			})))
		scheduled++
	}
	if scheduled == 0 {
		logging.Warn().Msg("No targets have an enabled schedule; daemon will only serve telemetry")
	}

	// Telemetry layer: localhost diagnostics listener.
	if cfg.Daemon.Listen != "" {
		server := telemetry.NewServer(cfg.Daemon.Listen, engine, store)
		tree.AddTelemetryService(supervisor.NewHTTPService(server, cfg.Daemon.ShutdownTimeout))
	}

	logging.Info().
		Int("scheduled_targets", scheduled).
		Str("listen", cfg.Daemon.Listen).
		Str("history_path", cfg.Daemon.HistoryPath).
		Msg("Daemon starting")

	err = tree.Serve(ctx)

	// The tree stops schedule services first; any job still running was
	// started by one of them and polls the same context.
	engine.CancelAll()

	if err != nil && ctx.Err() != nil {
		logging.Info().Msg("Daemon stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("supervisor tree failed: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
