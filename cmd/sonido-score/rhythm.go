package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-score/algorithms/temporal"
)

var rhythmCmd = &cobra.Command{
	Use:   "rhythm [file|-]",
	Short: "Estimate tempo, beats and time signature",
	Args:  cobra.ExactArgs(1),
	RunE:  runRhythm,
}

func init() {
	rootCmd.AddCommand(rhythmCmd)

	rhythmCmd.Flags().Float64("min-bpm", 60, "slowest tempo considered")
	rhythmCmd.Flags().Float64("max-bpm", 240, "fastest tempo considered")
}

// applyBPMFlags overrides the configured BPM range with explicitly set flags
func applyBPMFlags(flags *pflag.FlagSet, opts *temporal.RhythmOptions) error {
	overrides := []struct {
		name   string
		target *float64
	}{
		{"min-bpm", &opts.MinBPM},
		{"max-bpm", &opts.MaxBPM},
	}

	for _, o := range overrides {
		if !flags.Changed(o.name) {
			continue
		}
		v, err := flags.GetFloat64(o.name)
		if err != nil {
			return err
		}
		*o.target = v
	}

	return opts.Validate()
}

func runRhythm(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}

	opts := cfg.Rhythm
	if err := applyBPMFlags(cmd.Flags(), &opts); err != nil {
		return err
	}

	buf, err := loadBuffer(context.Background(), args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	result, err := temporal.NewRhythmAnalyzer().AnalyzeRhythm(buf.Samples, buf.SampleRate, opts)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), viper.GetString("output"), result)
}
