package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stratum/internal/discovery"
	"stratum/internal/logging"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <input-dir> <output-dir>",
		Short: "Rebuild the discovery snapshot without processing anything",
		Args:  cobra.ExactArgs(2),
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

			cache := discovery.NewCache(inputDir, outputDir, cfg.Processing.Extension, logging.NewNop())
			artifacts, err := cache.List(true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d artifact(s) under %s\n", len(artifacts), inputDir)
			fmt.Fprintf(out, "Snapshot written to %s\n", cache.CachePath())
			return nil
		},
	}
	return cmd
}
