// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beloureiro/inlocker/internal/backup"
	"github.com/beloureiro/inlocker/internal/config"
	"github.com/beloureiro/inlocker/internal/manifest"
)

var listCmd = &cobra.Command{
	Use:   "list [target]",
	Short: "List finished archives",
	Long: `List the finished archives in each target's destination, newest
first. In-flight .partial files are never shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var targets []config.TargetConfig
		if len(args) == 1 {
			tc, ok := cfg.FindTarget(args[0])
			if !ok {
				return fmt.Errorf("target %q is not configured", args[0])
			}
			targets = []config.TargetConfig{tc}
		} else {
			targets = cfg.Targets
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets configured")
		}

		engine := backup.New(manifest.NewFileStore())
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tARCHIVE\tTYPE\tMODE\tCREATED\tSIZE")
		for _, tc := range targets {
			if tc.Mode == string(backup.ModeCopy) {
				continue // copy targets produce a mirror directory, not archives
			}
			archives, err := engine.ListArchives(tc.Target())
			if err != nil {
				return fmt.Errorf("target %s: %w", tc.Name, err)
			}
			for _, a := range archives {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					tc.Name, a.Name, a.Type, a.Mode,
					a.CreatedAt.Format("2006-01-02 15:04:05"), formatBytes(a.Size))
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
