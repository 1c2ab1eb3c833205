package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/tonal"
)

var (
	pitchWindow int
	pitchHop    int
)

var pitchCmd = &cobra.Command{
	Use:   "pitch [file|-]",
	Short: "Track the fundamental frequency window by window",
	Args:  cobra.ExactArgs(1),
	RunE:  runPitch,
}

func init() {
	rootCmd.AddCommand(pitchCmd)

	pitchCmd.Flags().IntVar(&pitchWindow, "window", 2048, "samples per pitch estimate")
	pitchCmd.Flags().IntVar(&pitchHop, "hop", 1024, "samples between estimates")
}

type pitchPoint struct {
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
	Clarity   float64 `json:"clarity"`
	MidiNote  int     `json:"midi_note"`
	NoteName  string  `json:"note_name"`
	Cents     float64 `json:"cents"`
}

func runPitch(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}

	buf, err := loadBuffer(context.Background(), args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	if pitchWindow <= 0 || pitchHop <= 0 {
		return common.NewInputError("pitch", "window (%d) and hop (%d) must be positive", pitchWindow, pitchHop)
	}

	detector := tonal.NewPitchDetector()
	track := make([]pitchPoint, 0)

	for start := 0; start+pitchWindow <= buf.Len(); start += pitchHop {
		window := buf.Slice(start, start+pitchWindow)
		p, err := detector.DetectPitch(window.Samples, window.SampleRate, cfg.Pitch)
		if err != nil {
			return err
		}
		if !p.Found {
			continue
		}

		midi := tonal.FrequencyToMidi(p.Frequency)
		track = append(track, pitchPoint{
			Time:      float64(start) / float64(buf.SampleRate),
			Frequency: p.Frequency,
			Clarity:   p.Clarity,
			MidiNote:  midi,
			NoteName:  tonal.MidiNoteName(midi),
			Cents:     tonal.CentsOff(p.Frequency),
		})
	}

	return writeOutput(cmd.OutOrStdout(), viper.GetString("output"), track)
}
