// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/manifest"
)

var verifyCmd = &cobra.Command{
	Use:   "verify ARCHIVE",
	Short: "Verify an archive's integrity without extracting it",
	Long: `Recompute the archive's SHA-256 and compare it against the stored
trailer. No decryption or decompression happens; a passing check means
the file on disk is bit-identical to what the backup wrote.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := backup.New(manifest.NewFileStore())
		sum, err := engine.VerifyArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ok  sha256:%s\n", sum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
