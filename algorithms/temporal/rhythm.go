package temporal

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/logging"
)

// DefaultBPM is reported when fewer than two beats are found
const DefaultBPM = 120.0

const (
	envelopeWindowSeconds = 0.1 // 100ms energy frames, 50% hop
	combHarmonics         = 4
	beatTolerance         = 0.2 // Fraction of a beat interval
	barStrengthRatio      = 0.8
	barRepeatTolerance    = 0.3
	minTimeSignatureConf  = 0.5
)

// RhythmOptions bounds the tempo search
type RhythmOptions struct {
	MinBPM             float64 `json:"min_bpm" mapstructure:"min_bpm"`
	MaxBPM             float64 `json:"max_bpm" mapstructure:"max_bpm"`
	BPMResolution      float64 `json:"bpm_resolution" mapstructure:"bpm_resolution"`
	EnableBeatTracking bool    `json:"enable_beat_tracking" mapstructure:"enable_beat_tracking"`
}

// DefaultRhythmOptions searches 60-240 BPM in 1 BPM steps
func DefaultRhythmOptions() RhythmOptions {
	return RhythmOptions{
		MinBPM:             60.0,
		MaxBPM:             240.0,
		BPMResolution:      1.0,
		EnableBeatTracking: true,
	}
}

// Validate checks the BPM range and step
func (o RhythmOptions) Validate() error {
	const op = "temporal.RhythmOptions"

	if o.MinBPM <= 0 {
		return common.NewInputError(op, "min bpm must be positive, got %g", o.MinBPM)
	}
	if o.MaxBPM < o.MinBPM {
		return common.NewInputError(op, "max bpm (%g) is below min bpm (%g)", o.MaxBPM, o.MinBPM)
	}
	if o.BPMResolution <= 0 {
		return common.NewInputError(op, "bpm resolution must be positive, got %g", o.BPMResolution)
	}
	return nil
}

// Beat is a single detected beat
type Beat struct {
	Time       float64 `json:"time"`     // Seconds from buffer start
	Strength   float64 `json:"strength"` // Envelope value at the beat
	Confidence float64 `json:"confidence"`
}

// TimeSignature is a candidate meter
type TimeSignature struct {
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
	Confidence  float64 `json:"confidence"`
	StartTime   float64 `json:"start_time"`
}

// String returns the meter as "n/d"
func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// RhythmAnalysis is the tempo, beat and meter estimate of a buffer
type RhythmAnalysis struct {
	BPM            float64         `json:"bpm"`
	Beats          []Beat          `json:"beats"`
	TimeSignatures []TimeSignature `json:"time_signatures"`
	Confidence     float64         `json:"confidence"`
	SampleRate     int             `json:"sample_rate"`
}

// RhythmAnalyzer estimates tempo with a comb filter over the energy envelope
// and picks beats on the winning grid
type RhythmAnalyzer struct {
	envelope *Envelope
	logger   logging.Logger
}

// NewRhythmAnalyzer creates a rhythm analyzer using the global logger
func NewRhythmAnalyzer() *RhythmAnalyzer {
	return NewRhythmAnalyzerWithLogger(logging.WithFields(logging.Fields{
		"component": "rhythm_analyzer",
	}))
}

// NewRhythmAnalyzerWithLogger creates a rhythm analyzer reporting through logger
func NewRhythmAnalyzerWithLogger(logger logging.Logger) *RhythmAnalyzer {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &RhythmAnalyzer{
		envelope: NewEnvelope(),
		logger:   logger,
	}
}

// AnalyzeRhythm estimates BPM, beats, time signatures and an overall
// confidence for samples
func (ra *RhythmAnalyzer) AnalyzeRhythm(samples []float64, sampleRate int, opts RhythmOptions) (*RhythmAnalysis, error) {
	const op = "temporal.AnalyzeRhythm"

	if err := common.ValidateSamples(op, samples, sampleRate); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	env, frameDuration, err := ra.energyEnvelope(op, samples, sampleRate)
	if err != nil {
		return nil, err
	}

	logger := ra.logger.WithFields(logging.Fields{
		"function":    "AnalyzeRhythm",
		"samples":     len(samples),
		"sample_rate": sampleRate,
		"frames":      len(env),
	})

	gridBPM := bestCombBPM(env, frameDuration, opts)
	beats := pickBeats(env, frameDuration, gridBPM)
	bpm := refineBPM(beats, opts)

	result := &RhythmAnalysis{
		BPM:            bpm,
		Beats:          beats,
		TimeSignatures: detectTimeSignatures(beats),
		Confidence:     beatConsistency(beats, bpm),
		SampleRate:     sampleRate,
	}

	logger.Debug("Rhythm analysis complete", logging.Fields{
		"grid_bpm":   gridBPM,
		"bpm":        bpm,
		"beats":      len(beats),
		"confidence": result.Confidence,
	})

	return result, nil
}

// energyEnvelope returns the mean-absolute envelope and the seconds per
// envelope frame
func (ra *RhythmAnalyzer) energyEnvelope(op string, samples []float64, sampleRate int) ([]float64, float64, error) {
	window := int(envelopeWindowSeconds * float64(sampleRate))
	hop := window / 2
	if hop < 1 {
		return nil, 0, common.NewInputError(op, "sample rate %d is too low for %gs envelope frames", sampleRate, envelopeWindowSeconds)
	}

	return ra.envelope.ComputeMeanAbs(samples, window, hop), float64(hop) / float64(sampleRate), nil
}

// bestCombBPM scores every candidate tempo by correlating the envelope with
// itself at one to four beat intervals back. Ties keep the slowest tempo.
func bestCombBPM(env []float64, frameDuration float64, opts RhythmOptions) float64 {
	steps := int(math.Floor((opts.MaxBPM-opts.MinBPM)/opts.BPMResolution + 1e-9))

	bestBPM := opts.MinBPM
	bestScore := math.Inf(-1)

	for s := 0; s <= steps; s++ {
		bpm := opts.MinBPM + float64(s)*opts.BPMResolution
		interval := 60.0 / (bpm * frameDuration)

		score := 0.0
		for i, e := range env {
			for k := 1; k <= combHarmonics; k++ {
				lag := float64(i) - float64(k)*interval
				if lag < 0 {
					break
				}
				// Fractional lags are interpolated, not truncated; truncation
				// biases the winning tempo a few BPM low.
				score += e * common.LinearAt(env, lag)
			}
		}

		if score > bestScore {
			bestScore = score
			bestBPM = bpm
		}
	}

	return bestBPM
}

// pickBeats keeps the interior local maxima of env that sit within 20% of an
// interval from the beat grid of bpm
func pickBeats(env []float64, frameDuration, bpm float64) []Beat {
	beats := make([]Beat, 0)
	interval := 60.0 / (bpm * frameDuration)
	tolerance := beatTolerance * interval

	for i := 1; i < len(env)-1; i++ {
		if env[i] <= env[i-1] || env[i] <= env[i+1] {
			continue
		}

		phase := math.Mod(float64(i), interval)
		distance := math.Min(phase, interval-phase)
		if distance >= tolerance {
			continue
		}

		beats = append(beats, Beat{
			Time:       float64(i) * frameDuration,
			Strength:   env[i],
			Confidence: 1.0 - distance/tolerance,
		})
	}

	return beats
}

// refineBPM converts the mean inter-beat interval to a tempo
func refineBPM(beats []Beat, opts RhythmOptions) float64 {
	avg, ok := meanInterval(beats)
	if !ok || avg <= 0 {
		return DefaultBPM
	}
	return common.Clamp(60.0/avg, opts.MinBPM, opts.MaxBPM)
}

// detectTimeSignatures scores bar lengths 3 through 7 on the beat strengths
func detectTimeSignatures(beats []Beat) []TimeSignature {
	signatures := make([]TimeSignature, 0)
	if len(beats) < 4 {
		return signatures
	}

	strengths := make([]float64, len(beats))
	for i, b := range beats {
		strengths[i] = b.Strength
	}

	for barLength := 3; barLength <= 7; barLength++ {
		confidence := barConfidence(strengths, barLength)
		if confidence <= minTimeSignatureConf {
			continue
		}
		signatures = append(signatures, TimeSignature{
			Numerator:   barLength,
			Denominator: 4,
			Confidence:  confidence,
			StartTime:   beats[0].Time,
		})
	}

	sort.SliceStable(signatures, func(i, j int) bool {
		return signatures[i].Confidence > signatures[j].Confidence
	})

	return signatures
}

// barConfidence penalises non-downbeats nearly as strong as the downbeat and
// rewards downbeats of similar strength in consecutive bars
func barConfidence(strengths []float64, barLength int) float64 {
	confidence := 0.0

	for i := 0; i < len(strengths)-barLength; i += barLength {
		first := strengths[i]
		next := strengths[i+barLength]

		for j := 1; j < barLength; j++ {
			if strengths[i+j] > first*barStrengthRatio {
				confidence -= 0.1
			}
		}

		if math.Abs(first-next) < first*barRepeatTolerance {
			confidence += 0.2
		}
	}

	return common.Clamp(confidence, 0, 1)
}

// beatConsistency measures how closely beat spacing matches 60/bpm
func beatConsistency(beats []Beat, bpm float64) float64 {
	if len(beats) < 2 || bpm <= 0 {
		return 0.0
	}

	expected := 60.0 / bpm
	deviation := 0.0
	for i := 1; i < len(beats); i++ {
		deviation += math.Abs(beats[i].Time - beats[i-1].Time - expected)
	}
	deviation /= float64(len(beats) - 1)

	return common.Clamp(1.0-deviation/expected, 0, 1)
}

func meanInterval(beats []Beat) (float64, bool) {
	if len(beats) < 2 {
		return 0, false
	}
	return (beats[len(beats)-1].Time - beats[0].Time) / float64(len(beats)-1), true
}
