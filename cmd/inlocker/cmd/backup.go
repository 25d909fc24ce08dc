// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/config"
	"github.com/beloureiro/inlocker/internal/manifest"
)

var (
	flagBackupAll    bool
	flagPasswordFile string
)

var backupCmd = &cobra.Command{
	Use:   "backup [target ...]",
	Short: "Run backup jobs for configured targets",
	Long: `Run one backup job per named target, or every configured target with
--all. Targets run concurrently; each job is independent and failures
do not stop the others. Ctrl-C cancels running jobs cooperatively and
removes their partial artifacts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := selectTargets(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine := backup.New(manifest.NewFileStore())
		sink := newConsoleSink(os.Stdout)

		g, gctx := errgroup.WithContext(ctx)
		for _, tc := range targets {
			g.Go(func() error {
				password, err := resolvePassword(flagPasswordFile, tc.PasswordFile)
				if err != nil {
					return fmt.Errorf("target %s: %w", tc.Name, err)
				}
				job, err := engine.RunBackup(gctx, tc.Target(), backup.BackupOptions{
					Password: password,
					Sink:     sink,
				})
				if err != nil {
					return fmt.Errorf("target %s: %w", tc.Name, err)
				}
				fmt.Printf("%s: %s, %d files, %s -> %s\n",
					tc.Name, job.Status, job.FilesPacked,
					formatBytes(job.OriginalBytes), formatBytes(job.ArchiveBytes))
				return nil
			})
		}
		return g.Wait()
	},
}

// selectTargets resolves the positional args (or --all) to target
// declarations.
func selectTargets(args []string) ([]config.TargetConfig, error) {
	if flagBackupAll {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all cannot be combined with target names")
		}
		if len(cfg.Targets) == 0 {
			return nil, fmt.Errorf("no targets configured")
		}
		return cfg.Targets, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("name at least one target, or use --all")
	}
	targets := make([]config.TargetConfig, 0, len(args))
	for _, name := range args {
		tc, ok := cfg.FindTarget(name)
		if !ok {
			return nil, fmt.Errorf("target %q is not configured", name)
		}
		targets = append(targets, tc)
	}
	return targets, nil
}

func init() {
	backupCmd.Flags().BoolVar(&flagBackupAll, "all", false, "back up every configured target")
	backupCmd.Flags().StringVar(&flagPasswordFile, "password-file", "", "file holding the encryption password")
	rootCmd.AddCommand(backupCmd)
}
