package tonal

import (
	"fmt"
	"math"
)

// A4 reference
const (
	ReferenceFrequency = 440.0
	ReferenceMidi      = 69
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FrequencyToMidi returns round(69 + 12·log2(f/440)) clamped to 0..127.
// Non-positive frequencies map to 0.
func FrequencyToMidi(frequency float64) int {
	if frequency <= 0 {
		return 0
	}

	midi := int(math.Round(ReferenceMidi + 12*math.Log2(frequency/ReferenceFrequency)))
	return max(0, min(127, midi))
}

// MidiToFrequency returns the equal-tempered frequency of a MIDI note
func MidiToFrequency(midi int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(midi-ReferenceMidi)/12)
}

// MidiNoteName returns scientific pitch notation, e.g. 60 -> "C4"
func MidiNoteName(midi int) string {
	octave := midi/12 - 1
	return fmt.Sprintf("%s%d", noteNames[((midi%12)+12)%12], octave)
}

// CentsOff returns how far frequency is from the nearest equal-tempered note
func CentsOff(frequency float64) float64 {
	if frequency <= 0 {
		return 0
	}
	return 1200 * math.Log2(frequency/MidiToFrequency(FrequencyToMidi(frequency)))
}
