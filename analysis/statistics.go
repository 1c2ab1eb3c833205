package analysis

import (
	"time"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// Statistics summarises a Result
type Statistics struct {
	TotalNotes            int           `json:"total_notes"`
	TotalChords           int           `json:"total_chords"`
	TotalGlissandos       int           `json:"total_glissandos"`
	DetectedBPM           float64       `json:"detected_bpm"`
	AverageNoteDuration   float64       `json:"average_note_duration"`
	NoteDurationStdDev    float64       `json:"note_duration_std_dev"` // Sample standard deviation, 0 below two notes
	AverageNoteConfidence float64       `json:"average_note_confidence"`
	MinMidiNote           int           `json:"min_midi_note"`
	MaxMidiNote           int           `json:"max_midi_note"`
	SpectralPeaks         int           `json:"spectral_peaks"`
	AudioDuration         float64       `json:"audio_duration"`
	ProcessingTime        time.Duration `json:"processing_time"`
}

// ComputeStatistics counts the events of r and averages its notes. Note
// fields stay zero when r has no notes; a nil r gives zero Statistics.
func ComputeStatistics(r *Result) Statistics {
	if r == nil {
		return Statistics{}
	}

	stats := Statistics{
		TotalNotes:      len(r.Notes),
		TotalChords:     len(r.Chords),
		TotalGlissandos: len(r.Glissandos),
		AudioDuration:   r.Duration,
		ProcessingTime:  r.ProcessingTime,
	}

	if r.Rhythm != nil {
		stats.DetectedBPM = r.Rhythm.BPM
	}
	if r.Spectrum != nil {
		stats.SpectralPeaks = len(r.Spectrum.Peaks)
	}

	if len(r.Notes) > 0 {
		durations := make([]float64, len(r.Notes))
		confidences := make([]float64, len(r.Notes))
		stats.MinMidiNote, stats.MaxMidiNote = r.Notes[0].MidiNote, r.Notes[0].MidiNote

		for i, n := range r.Notes {
			durations[i] = n.Duration
			confidences[i] = n.Confidence
			stats.MinMidiNote = min(stats.MinMidiNote, n.MidiNote)
			stats.MaxMidiNote = max(stats.MaxMidiNote, n.MidiNote)
		}

		stats.AverageNoteDuration = common.Mean(durations)
		stats.NoteDurationStdDev = common.StandardDeviation(durations)
		stats.AverageNoteConfidence = common.Mean(confidences)
	}

	return stats
}
