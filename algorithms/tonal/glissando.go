package tonal

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// GlissandoOptions configures slide detection between consecutive notes
type GlissandoOptions struct {
	Enable             bool    `json:"enable" mapstructure:"enable"`
	MaxGapBetweenNotes float64 `json:"max_gap_between_notes" mapstructure:"max_gap_between_notes"` // Seconds
	MinPitchChangeRate float64 `json:"min_pitch_change_rate" mapstructure:"min_pitch_change_rate"` // Semitones per second
	MaxPitchChangeRate float64 `json:"max_pitch_change_rate" mapstructure:"max_pitch_change_rate"` // Semitones per second
}

// DefaultGlissandoOptions accepts slides of 1-50 semitones per second
func DefaultGlissandoOptions() GlissandoOptions {
	return GlissandoOptions{
		Enable:             true,
		MaxGapBetweenNotes: 0.05,
		MinPitchChangeRate: 1.0,
		MaxPitchChangeRate: 50.0,
	}
}

// Validate checks the gap and rate bounds
func (o GlissandoOptions) Validate() error {
	const op = "tonal.GlissandoOptions"

	if o.MaxGapBetweenNotes < 0 {
		return common.NewInputError(op, "max gap must not be negative, got %g", o.MaxGapBetweenNotes)
	}
	if o.MinPitchChangeRate < 0 || o.MaxPitchChangeRate < o.MinPitchChangeRate {
		return common.NewInputError(op, "pitch change rate range [%g, %g] is invalid", o.MinPitchChangeRate, o.MaxPitchChangeRate)
	}
	return nil
}

// idealGlissandoRate centres the rate confidence, in semitones per second
const idealGlissandoRate = 30.0

// Glissando is a rapid pitch slide between two consecutive notes
type Glissando struct {
	StartNote   DetectedNote `json:"start_note"`
	EndNote     DetectedNote `json:"end_note"`
	StartTime   float64      `json:"start_time"`
	EndTime     float64      `json:"end_time"`
	Duration    float64      `json:"duration"`     // Onset to onset (s)
	PitchChange int          `json:"pitch_change"` // Semitones
	Rate        float64      `json:"rate"`         // Semitones per second
	Confidence  float64      `json:"confidence"`
}

// DetectGlissandos pairs each note with its successor by onset and keeps
// the pairs that are close in time and change pitch at a plausible rate
func DetectGlissandos(notes []DetectedNote, opts GlissandoOptions) ([]Glissando, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	glissandos := make([]Glissando, 0)
	if !opts.Enable || len(notes) < 2 {
		return glissandos, nil
	}

	sorted := make([]DetectedNote, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	for i := 0; i < len(sorted)-1; i++ {
		current, next := sorted[i], sorted[i+1]

		gap := next.StartTime - (current.StartTime + current.Duration)
		if gap > opts.MaxGapBetweenNotes {
			continue
		}

		interval := next.StartTime - current.StartTime
		if interval <= 0 {
			continue
		}

		pitchChange := math.Abs(float64(next.MidiNote - current.MidiNote))
		rate := pitchChange / interval
		if rate < opts.MinPitchChangeRate || rate > opts.MaxPitchChangeRate {
			continue
		}

		glissandos = append(glissandos, Glissando{
			StartNote:   current,
			EndNote:     next,
			StartTime:   current.StartTime,
			EndTime:     next.StartTime,
			Duration:    interval,
			PitchChange: int(pitchChange),
			Rate:        rate,
			Confidence:  glissandoConfidence(current, next, rate),
		})
	}

	return glissandos, nil
}

func glissandoConfidence(start, end DetectedNote, rate float64) float64 {
	noteConf := (start.Confidence + end.Confidence) / 2 * 0.5
	rateConf := math.Max(0, 1-math.Abs(rate-idealGlissandoRate)/idealGlissandoRate) * 0.5
	return math.Min(noteConf+rateConf, 1)
}
