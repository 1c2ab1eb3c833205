package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-score/analysis"
)

var (
	analyzeTimeout   time.Duration
	analyzeStatsOnly bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Run the full analysis pipeline on one file",
	Long: `Decode a file, then estimate its spectrum, pitch, harmonics, notes,
chords, glissandos and rhythm, and print the result with summary statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 5*time.Minute,
		"timeout for decoding and analysis")
	analyzeCmd.Flags().BoolVar(&analyzeStatsOnly, "stats-only", false,
		"print only the summary statistics")
}

type analyzeOutput struct {
	File       string              `json:"file"`
	Statistics analysis.Statistics `json:"statistics"`
	Result     *analysis.Result    `json:"result,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}

	buf, err := loadBuffer(ctx, args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	engine, err := analysis.NewEngine(*cfg)
	if err != nil {
		return err
	}

	result, err := engine.Analyze(ctx, buf)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	out := analyzeOutput{
		File:       args[0],
		Statistics: analysis.ComputeStatistics(result),
	}
	if !analyzeStatsOnly {
		out.Result = result
	}

	return writeOutput(cmd.OutOrStdout(), viper.GetString("output"), out)
}
