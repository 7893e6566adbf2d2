package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stratum/internal/config"
	"stratum/internal/decoder"
	"stratum/internal/dedup"
	"stratum/internal/discovery"
	"stratum/internal/journal"
	"stratum/internal/logging"
	"stratum/internal/packager"
	"stratum/internal/pipeline"
	"stratum/internal/state"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		workersFlag   int
		stateFileFlag string
		resetFlag     bool
		rescanFlag    bool
		verboseFlag   bool
		noCopyFlag    bool
	)

	cmd := &cobra.Command{
		Use:   "run <input-dir> <output-dir>",
		Short: "Process every artifact under the input directory",
		Long: `Run walks the input directory for artifacts, extracts their visible
layers through the configured extractor, and packages each distinct artifact
as a zip archive in the output directory. Progress persists across
interruptions: rerunning the same command resumes where the previous run
stopped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			inputDir, err := resolveDir(args[0], "input")
			if err != nil {
				return err
			}
			outputDir, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output directory %s: %w", outputDir, err)
			}

			statePath := stateFileFlag
			if statePath == "" {
				statePath = outputPath(cfg.Paths.StateFile, outputDir, config.DefaultStateFileName)
			}

			runLock := flock.New(statePath + ".lock")
			locked, err := runLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another stratum run is already using %s", statePath)
			}
			defer func() { _ = runLock.Unlock() }()

			level := cfg.Logging.Level
			if verboseFlag {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{
				Level:  level,
				Format: cfg.Logging.Format,
				OutputPaths: []string{
					"stderr",
					outputPath(cfg.Paths.LogFile, outputDir, config.DefaultLogFileName),
				},
			})
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store := state.NewStore(statePath, logger)
			if resetFlag {
				if err := store.Reset(); err != nil {
					return fmt.Errorf("reset state: %w", err)
				}
			}
			st := store.Load()

			cache := discovery.NewCache(inputDir, outputDir, cfg.Processing.Extension, logger)
			artifacts, err := cache.List(rescanFlag)
			if err != nil {
				return err
			}

			// History is advisory: a broken journal never blocks processing.
			var jnl *journal.Journal
			journalPath := outputPath(cfg.Paths.JournalFile, outputDir, config.DefaultJournalFileName)
			if j, err := journal.Open(journalPath); err != nil {
				logger.Warn("run journal unavailable",
					logging.String("path", journalPath), logging.Error(err))
			} else {
				jnl = j
				defer func() { _ = jnl.Close() }()
			}

			runID := uuid.NewString()
			if jnl != nil {
				if err := jnl.BeginRun(cmd.Context(), runID, inputDir, outputDir); err != nil {
					logger.Warn("record run start", logging.Error(err))
				}
			}

			workers := workersFlag
			if workers <= 0 {
				workers = cfg.Processing.Workers
			}

			runner := pipeline.NewRunner(
				store,
				st,
				dedup.NewResolver(outputDir, st, logger),
				packager.New(outputDir, decoder.NewTool(cfg.Processing.Extractor, logger), logger),
				jnl,
				logger,
				pipeline.Options{
					OutputRoot:         outputDir,
					Workers:            workers,
					CheckpointInterval: cfg.Processing.CheckpointInterval,
					CopySource:         !noCopyFlag,
					RunID:              runID,
				},
			)
			stats := runner.Run(cmd.Context(), artifacts)

			if jnl != nil {
				err := jnl.FinishRun(cmd.Context(), runID,
					stats.Found, stats.Succeeded, stats.Duplicates, stats.Skipped, stats.Failed)
				if err != nil {
					logger.Warn("record run finish", logging.Error(err))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"Outcome", "Count"},
				[][]string{
					{"Found", strconv.Itoa(stats.Found)},
					{"Succeeded", strconv.Itoa(stats.Succeeded)},
					{"Duplicates", strconv.Itoa(stats.Duplicates)},
					{"Skipped", strconv.Itoa(stats.Skipped)},
					{"Failed", strconv.Itoa(stats.Failed)},
				},
				[]columnAlignment{alignLeft, alignRight}))

			// Individual artifact failures are reported in the summary and
			// the log; the run itself still exits cleanly so cron-style
			// wrappers only alarm on operational errors.
			return nil
		},
	}

	cmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Worker pool size (0 uses the configured value)")
	cmd.Flags().StringVar(&stateFileFlag, "state-file", "", "Path to the resume state file")
	cmd.Flags().BoolVar(&resetFlag, "reset", false, "Discard existing resume state before processing")
	cmd.Flags().BoolVar(&rescanFlag, "rescan", false, "Ignore the cached file list and walk the input directory again")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noCopyFlag, "no-copy", false, "Do not preserve a copy of the source artifact")
	return cmd
}
