// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/beloureiro/inlocker/internal/history"
)

var flagHistoryCount int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent job records from the daemon's history store",
	Long: `Read the BadgerDB history store the daemon writes and print the most
recent finished jobs. The daemon must not be running: the store is
single-writer.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := history.Open(cfg.Daemon.HistoryPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		records, err := store.Recent(flagHistoryCount)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no job history")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tKIND\tTARGET\tMODE\tSTATUS\tFILES\tDURATION")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Kind, rec.Target, rec.Mode, rec.Status,
				rec.FilesPacked, rec.Duration().Round(time.Second))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryCount, "count", "n", 20, "number of records to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}
