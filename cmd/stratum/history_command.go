package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stratum/internal/config"
	"stratum/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history <output-dir>",
		Short: "Show recent runs recorded against an output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			outputDir, err := resolveDir(args[0], "output")
			if err != nil {
				return err
			}

			journalPath := outputPath(cfg.Paths.JournalFile, outputDir, config.DefaultJournalFileName)
			jnl, err := journal.Open(journalPath)
			if err != nil {
				return fmt.Errorf("open run journal %s: %w", journalPath, err)
			}
			defer jnl.Close()

			runs, err := jnl.RecentRuns(cmd.Context(), limitFlag)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					runDuration(run),
					filepath.Base(run.InputDir),
					strconv.Itoa(run.Found),
					strconv.Itoa(run.Succeeded),
					strconv.Itoa(run.Duplicates),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Run", "Started", "Duration", "Input", "Found", "OK", "Dup", "Skip", "Fail"},
				rows,
				[]columnAlignment{
					alignLeft, alignLeft, alignRight, alignLeft,
					alignRight, alignRight, alignRight, alignRight, alignRight,
				}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 10, "Maximum number of runs to show")
	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDuration(run journal.Run) string {
	if run.FinishedAt == nil {
		return "running"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
