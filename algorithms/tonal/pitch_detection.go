package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/logging"
)

// PitchOptions bounds the YIN search
type PitchOptions struct {
	MinFrequency float64 `json:"min_frequency" mapstructure:"min_frequency"` // Lowest detectable pitch (Hz)
	MaxFrequency float64 `json:"max_frequency" mapstructure:"max_frequency"` // Highest detectable pitch (Hz)
	Threshold    float64 `json:"threshold" mapstructure:"threshold"`         // CMNDF acceptance threshold (0-1)
}

// DefaultPitchOptions covers low male voice to high female voice
func DefaultPitchOptions() PitchOptions {
	return PitchOptions{
		MinFrequency: 80.0,
		MaxFrequency: 1000.0,
		Threshold:    0.1,
	}
}

// Validate checks the frequency range and threshold
func (o PitchOptions) Validate() error {
	const op = "tonal.PitchOptions"

	if o.MinFrequency <= 0 {
		return common.NewInputError(op, "min frequency must be positive, got %g", o.MinFrequency)
	}
	if o.MaxFrequency <= o.MinFrequency {
		return common.NewInputError(op, "max frequency (%g) must exceed min frequency (%g)", o.MaxFrequency, o.MinFrequency)
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return common.NewInputError(op, "threshold must be within [0, 1], got %g", o.Threshold)
	}
	return nil
}

// Pitch is the outcome of a single-pitch estimate. Found is false when the
// frame has no usable period; Frequency, Period and Clarity are then zero.
type Pitch struct {
	Frequency float64 `json:"frequency"` // Estimated fundamental (Hz)
	Period    float64 `json:"period"`    // Refined lag in samples
	Clarity   float64 `json:"clarity"`   // 1 - CMNDF at the chosen lag
	Found     bool    `json:"found"`
}

// NoPitch is the absent estimate
var NoPitch = Pitch{}

// PitchDetector estimates the dominant pitch of a frame with YIN.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
type PitchDetector struct {
	logger logging.Logger
}

// NewPitchDetector creates a pitch detector using the global logger
func NewPitchDetector() *PitchDetector {
	return NewPitchDetectorWithLogger(logging.WithFields(logging.Fields{
		"component": "pitch_detector",
	}))
}

// NewPitchDetectorWithLogger creates a pitch detector reporting through logger
func NewPitchDetectorWithLogger(logger logging.Logger) *PitchDetector {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &PitchDetector{logger: logger}
}

// DetectPitch runs YIN over the whole of samples
func (pd *PitchDetector) DetectPitch(samples []float64, sampleRate int, opts PitchOptions) (Pitch, error) {
	const op = "tonal.DetectPitch"

	if err := common.ValidateSamples(op, samples, sampleRate); err != nil {
		return NoPitch, err
	}
	if err := opts.Validate(); err != nil {
		return NoPitch, err
	}

	sr := float64(sampleRate)
	tauMax := min(len(samples)/2, int(math.Round(sr/opts.MinFrequency)))
	tauMin := max(2, int(math.Round(sr/opts.MaxFrequency)))

	if tauMin > tauMax {
		pd.logger.Debug("Empty lag range", logging.Fields{
			"function": "DetectPitch",
			"tau_min":  tauMin,
			"tau_max":  tauMax,
			"samples":  len(samples),
		})
		return NoPitch, nil
	}

	cmndf, ok := cumulativeMeanNormalizedDifference(samples, tauMax)
	if !ok {
		return NoPitch, nil
	}

	tau := findTrough(cmndf, tauMin, tauMax, opts.Threshold)

	period := float64(tau)
	if tau > 0 && tau < tauMax {
		if offset, ok := common.ParabolicVertex(cmndf[tau-1], cmndf[tau], cmndf[tau+1]); ok {
			period += offset
		}
	}
	if period <= 0 {
		return NoPitch, nil
	}

	return Pitch{
		Frequency: sr / period,
		Period:    period,
		Clarity:   common.Clamp(1-cmndf[tau], 0, 1),
		Found:     true,
	}, nil
}

// cumulativeMeanNormalizedDifference returns c[0..tauMax]. ok is false when
// the difference function is zero everywhere, i.e. the frame is constant.
func cumulativeMeanNormalizedDifference(x []float64, tauMax int) ([]float64, bool) {
	n := len(x)

	diff := make([]float64, tauMax+1)
	for tau := 1; tau <= tauMax; tau++ {
		sum := 0.0
		for j := 0; j < n-tau; j++ {
			delta := x[j] - x[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	cmndf := make([]float64, tauMax+1)
	cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau <= tauMax; tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = diff[tau] * float64(tau) / runningSum
	}

	return cmndf, runningSum > 0
}

// findTrough returns the first lag under threshold, walked down to its local
// minimum, or the global minimum over [tauMin, tauMax] when nothing qualifies
func findTrough(cmndf []float64, tauMin, tauMax int, threshold float64) int {
	for tau := tauMin; tau <= tauMax; tau++ {
		if cmndf[tau] < threshold {
			for tau+1 <= tauMax && cmndf[tau+1] < cmndf[tau] {
				tau++
			}
			return tau
		}
	}

	best := tauMin
	for tau := tauMin + 1; tau <= tauMax; tau++ {
		if cmndf[tau] < cmndf[best] {
			best = tau
		}
	}
	return best
}
