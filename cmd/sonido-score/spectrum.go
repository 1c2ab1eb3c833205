package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
)

var (
	spectrumOffset      float64
	spectrumSpectrogram bool
)

var spectrumCmd = &cobra.Command{
	Use:   "spectrum [file|-]",
	Short: "Print the dB spectrum and peaks of one window, or a spectrogram",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpectrum,
}

func init() {
	rootCmd.AddCommand(spectrumCmd)

	spectrumCmd.Flags().Float64Var(&spectrumOffset, "offset", 0,
		"start of the analysis window in seconds")
	spectrumCmd.Flags().BoolVar(&spectrumSpectrogram, "spectrogram", false,
		"compute the spectrogram of the whole file instead")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}

	buf, err := loadBuffer(context.Background(), args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	analyzer := spectral.NewAnalyzer()
	format := viper.GetString("output")

	if spectrumSpectrogram {
		spec, err := analyzer.GenerateSpectrogram(buf.Samples, buf.SampleRate, cfg.Spectrogram)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), format, spec)
	}

	start := int(math.Round(spectrumOffset * float64(buf.SampleRate)))
	if start < 0 || start >= buf.Len() {
		return fmt.Errorf("offset %.3fs is outside the %.3fs file", spectrumOffset, buf.Seconds())
	}
	window := buf.Slice(start, start+cfg.Spectrum.WindowSize)

	frame, err := analyzer.AnalyzeSpectrum(window.Samples, window.SampleRate, cfg.Spectrum)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), format, frame)
}
