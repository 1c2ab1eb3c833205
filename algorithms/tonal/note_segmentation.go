package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
	"github.com/RyanBlaney/sonido-score/algorithms/windowing"
	"github.com/RyanBlaney/sonido-score/logging"
)

// Segmentation frame geometry
const (
	NoteWindowSize = 1024
	NoteHopSize    = NoteWindowSize / 4
)

// QuarterNoteSeconds is the quantization reference (120 BPM)
const QuarterNoteSeconds = 0.5

// Quantization is a note-grid precision
type Quantization string

const (
	QuantizeWhole        Quantization = "whole"
	QuantizeHalf         Quantization = "half"
	QuantizeQuarter      Quantization = "quarter"
	QuantizeEighth       Quantization = "eighth"
	QuantizeSixteenth    Quantization = "sixteenth"
	QuantizeThirtySecond Quantization = "thirty_second"
	QuantizeSixtyFourth  Quantization = "sixty_fourth"
)

var quantizationBeats = map[Quantization]float64{
	QuantizeWhole:        4,
	QuantizeHalf:         2,
	QuantizeQuarter:      1,
	QuantizeEighth:       0.5,
	QuantizeSixteenth:    0.25,
	QuantizeThirtySecond: 0.125,
	QuantizeSixtyFourth:  0.0625,
}

// Unit returns the grid step in seconds
func (q Quantization) Unit() (float64, error) {
	beats, ok := quantizationBeats[q]
	if !ok {
		return 0, fmt.Errorf("unknown quantization: %q", string(q))
	}
	return QuarterNoteSeconds * beats, nil
}

// NoteOptions configures note segmentation
type NoteOptions struct {
	VolumeThreshold         float64      `json:"volume_threshold" mapstructure:"volume_threshold"`                   // Minimum mean |x| of a voiced frame
	PitchStabilityThreshold int          `json:"pitch_stability_threshold" mapstructure:"pitch_stability_threshold"` // Semitones tolerated when merging
	NoteSeparationThreshold float64      `json:"note_separation_threshold" mapstructure:"note_separation_threshold"` // Largest gap bridged when merging (s)
	MinNoteDuration         float64      `json:"min_note_duration" mapstructure:"min_note_duration"`                 // Seconds
	MaxNoteDuration         float64      `json:"max_note_duration" mapstructure:"max_note_duration"`                 // Seconds
	Quantization            Quantization `json:"quantization" mapstructure:"quantization"`
	EnableChordDetection    bool         `json:"enable_chord_detection" mapstructure:"enable_chord_detection"`
}

// DefaultNoteOptions returns sixteenth-note quantized segmentation
func DefaultNoteOptions() NoteOptions {
	return NoteOptions{
		VolumeThreshold:         0.1,
		PitchStabilityThreshold: 0,
		NoteSeparationThreshold: 0.02,
		MinNoteDuration:         0.05,
		MaxNoteDuration:         5.0,
		Quantization:            QuantizeSixteenth,
		EnableChordDetection:    true,
	}
}

// Validate checks thresholds and the quantization grid
func (o NoteOptions) Validate() error {
	const op = "tonal.NoteOptions"

	if o.VolumeThreshold < 0 {
		return common.NewInputError(op, "volume threshold must not be negative, got %g", o.VolumeThreshold)
	}
	if o.PitchStabilityThreshold < 0 {
		return common.NewInputError(op, "pitch stability threshold must not be negative, got %d", o.PitchStabilityThreshold)
	}
	if o.MinNoteDuration < 0 || o.MaxNoteDuration < o.MinNoteDuration {
		return common.NewInputError(op, "note duration range [%g, %g] is invalid", o.MinNoteDuration, o.MaxNoteDuration)
	}
	if _, err := o.Quantization.Unit(); err != nil {
		return common.NewInputError(op, "%v", err)
	}
	return nil
}

// DetectedNote is one segmented note. EndTime - StartTime == Duration.
type DetectedNote struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Duration   float64 `json:"duration"`
	MidiNote   int     `json:"midi_note"`
	NoteName   string  `json:"note_name"`
	Frequency  float64 `json:"frequency"`
	Velocity   float64 `json:"velocity"`
	Confidence float64 `json:"confidence"`
}

// Per-frame analysis settings used while segmenting
var (
	frameSpectrumOptions = spectral.SpectrumOptions{
		WindowSize:      NoteWindowSize,
		WindowType:      windowing.Hann,
		MinPeakHeightDb: -50.0,
		PeakThresholdDb: 2.0,
	}
	framePitchOptions = PitchOptions{
		MinFrequency: 80.0,
		MaxFrequency: 1000.0,
		Threshold:    0.15,
	}
)

// NoteSegmenter turns a buffer into discrete notes by frame-wise pitch
// tracking, merging and grid quantization
type NoteSegmenter struct {
	spectrum *spectral.Analyzer
	pitch    *PitchDetector
	logger   logging.Logger
}

// NewNoteSegmenter creates a segmenter using the global logger
func NewNoteSegmenter() *NoteSegmenter {
	return NewNoteSegmenterWithLogger(logging.WithFields(logging.Fields{
		"component": "note_segmenter",
	}))
}

// NewNoteSegmenterWithLogger creates a segmenter reporting through logger
func NewNoteSegmenterWithLogger(logger logging.Logger) *NoteSegmenter {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &NoteSegmenter{
		spectrum: spectral.NewAnalyzerWithLogger(logger),
		pitch:    NewPitchDetectorWithLogger(logger),
		logger:   logger,
	}
}

// DetectNotes runs candidate extraction, merging and quantization
func (ns *NoteSegmenter) DetectNotes(samples []float64, sampleRate int, opts NoteOptions) ([]DetectedNote, error) {
	const op = "tonal.DetectNotes"

	if err := common.ValidateSamples(op, samples, sampleRate); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	candidates, err := ns.DetectCandidates(samples, sampleRate, opts)
	if err != nil {
		return nil, err
	}

	merged := MergeNotes(candidates, opts)
	notes, err := QuantizeNotes(merged, opts.Quantization)
	if err != nil {
		return nil, err
	}

	ns.logger.Debug("Note segmentation completed", logging.Fields{
		"function":   "DetectNotes",
		"candidates": len(candidates),
		"merged":     len(merged),
		"samples":    len(samples),
	})

	return notes, nil
}

// DetectCandidates emits one single-frame note for every voiced frame
func (ns *NoteSegmenter) DetectCandidates(samples []float64, sampleRate int, opts NoteOptions) ([]DetectedNote, error) {
	sr := float64(sampleRate)
	frameDuration := NoteWindowSize / sr
	candidates := make([]DetectedNote, 0)

	for start := 0; start < len(samples)-NoteWindowSize; start += NoteHopSize {
		frame := samples[start : start+NoteWindowSize]

		energy := common.MeanAbs(frame)
		if energy < opts.VolumeThreshold {
			continue
		}

		spectrum, err := ns.spectrum.AnalyzeSpectrum(frame, sampleRate, frameSpectrumOptions)
		if err != nil {
			return nil, fmt.Errorf("frame at sample %d: %w", start, err)
		}

		pitch, err := ns.pitch.DetectPitch(frame, sampleRate, framePitchOptions)
		if err != nil {
			return nil, fmt.Errorf("frame at sample %d: %w", start, err)
		}
		if !pitch.Found {
			continue
		}

		midi := FrequencyToMidi(pitch.Frequency)
		startTime := float64(start) / sr

		candidates = append(candidates, DetectedNote{
			StartTime:  startTime,
			EndTime:    startTime + frameDuration,
			Duration:   frameDuration,
			MidiNote:   midi,
			NoteName:   MidiNoteName(midi),
			Frequency:  pitch.Frequency,
			Velocity:   energy,
			Confidence: noteConfidence(spectrum, pitch.Frequency, energy),
		})
	}

	return candidates, nil
}

// noteConfidence averages the spectral agreement of the nearest peak with
// the frame energy
func noteConfidence(frame *spectral.SpectralFrame, frequency, energy float64) float64 {
	spectralConf := 0.0
	if peak, ok := frame.NearestPeak(frequency); ok {
		freqConf := 1 - math.Min(math.Abs(peak.Frequency-frequency)/10.0, 1)
		magConf := common.Clamp((peak.MagnitudeDb+60)/60, 0, 1)
		spectralConf = (freqConf + magConf) / 2
	}

	energyConf := math.Min(2*energy, 1)

	return (spectralConf + energyConf) / 2
}

// MergeNotes sweeps candidates left to right, extending the current note
// while the pitch stays within the stability threshold and the gap stays
// within the separation threshold. Notes outside [MinNoteDuration,
// MaxNoteDuration] are dropped when flushed.
func MergeNotes(candidates []DetectedNote, opts NoteOptions) []DetectedNote {
	merged := make([]DetectedNote, 0)
	if len(candidates) == 0 {
		return merged
	}

	keep := func(n DetectedNote) {
		if n.Duration >= opts.MinNoteDuration && n.Duration <= opts.MaxNoteDuration {
			merged = append(merged, n)
		}
	}

	current := candidates[0]
	for _, next := range candidates[1:] {
		pitchDelta := next.MidiNote - current.MidiNote
		if pitchDelta < 0 {
			pitchDelta = -pitchDelta
		}
		gap := next.StartTime - (current.StartTime + current.Duration)

		if pitchDelta <= opts.PitchStabilityThreshold && gap <= opts.NoteSeparationThreshold {
			current.EndTime = next.StartTime + next.Duration
			current.Duration = current.EndTime - current.StartTime
			current.Velocity = (current.Velocity + next.Velocity) / 2
			current.Confidence = (current.Confidence + next.Confidence) / 2
			continue
		}

		keep(current)
		current = next
	}
	keep(current)

	return merged
}

// QuantizeNotes snaps start times and durations to the grid. Durations never
// fall below one grid unit and EndTime is recomputed from them.
func QuantizeNotes(notes []DetectedNote, q Quantization) ([]DetectedNote, error) {
	unit, err := q.Unit()
	if err != nil {
		return nil, common.NewInputError("tonal.QuantizeNotes", "%v", err)
	}

	quantized := make([]DetectedNote, len(notes))
	for i, n := range notes {
		n.StartTime = math.Round(n.StartTime/unit) * unit
		n.Duration = math.Max(unit, math.Round(n.Duration/unit)*unit)
		n.EndTime = n.StartTime + n.Duration
		quantized[i] = n
	}

	return quantized, nil
}
