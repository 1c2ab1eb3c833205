package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-score/logging"
)

func sine(freq, amplitude float64, sampleRate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return x
}

func note(midi int, start, duration float64) DetectedNote {
	return DetectedNote{
		StartTime:  start,
		EndTime:    start + duration,
		Duration:   duration,
		MidiNote:   midi,
		NoteName:   MidiNoteName(midi),
		Frequency:  MidiToFrequency(midi),
		Velocity:   0.5,
		Confidence: 0.8,
	}
}

func quietLogger() logging.Logger {
	return &logging.NoOpLogger{}
}
