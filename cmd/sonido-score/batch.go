package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/analysis"
)

var batchTimeout time.Duration

var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Analyze many files concurrently and print their statistics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute,
		"timeout for the whole batch")
}

type batchEntry struct {
	File       string              `json:"file"`
	Statistics analysis.Statistics `json:"statistics"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}

	engine, err := analysis.NewEngine(*cfg)
	if err != nil {
		return err
	}

	bufs := make([]common.SampleBuffer, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.EffectiveWorkers())
	for i, path := range args {
		g.Go(func() error {
			buf, err := loadBuffer(gctx, path, nil)
			if err != nil {
				return err
			}
			bufs[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	results, err := engine.AnalyzeBatch(ctx, bufs)
	if err != nil {
		return fmt.Errorf("batch analysis failed: %w", err)
	}

	entries := make([]batchEntry, len(results))
	for i, r := range results {
		entries[i] = batchEntry{File: args[i], Statistics: analysis.ComputeStatistics(r)}
	}

	return writeOutput(cmd.OutOrStdout(), viper.GetString("output"), entries)
}
