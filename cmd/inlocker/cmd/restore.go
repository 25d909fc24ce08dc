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
	"time"

	"github.com/spf13/cobra"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/manifest"
)

var (
	flagRestorePasswordFile string
	flagRestoreChecksum     string
)

var restoreCmd = &cobra.Command{
	Use:   "restore ARCHIVE DESTINATION",
	Short: "Restore an archive into a destination directory",
	Long: `Restore the named archive into DESTINATION. The archive's integrity
trailer is verified before anything is extracted; encrypted archives
need the password via --password-file or INLOCKER_PASSWORD. The
decrypt and decompress stages cannot be interrupted mid-call; Ctrl-C
takes effect at the next entry boundary.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolvePassword(flagRestorePasswordFile, "")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine := backup.New(manifest.NewFileStore())
		result, err := engine.RunRestore(ctx, backup.RestoreRequest{
			ArchivePath:      args[0],
			Destination:      args[1],
			ExpectedChecksum: flagRestoreChecksum,
			Password:         password,
			Sink:             newConsoleSink(os.Stdout),
		})
		if err != nil {
			return err
		}

		fmt.Printf("restored %d files, %s, in %s\n",
			result.FilesRestored, formatBytes(result.BytesWritten), result.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&flagRestorePasswordFile, "password-file", "", "file holding the decryption password")
	restoreCmd.Flags().StringVar(&flagRestoreChecksum, "checksum", "", "expected hex SHA-256 of the archive")
	rootCmd.AddCommand(restoreCmd)
}
