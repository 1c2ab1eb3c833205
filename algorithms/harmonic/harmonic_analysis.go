package harmonic

import (
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
	"github.com/RyanBlaney/sonido-score/logging"
	"gonum.org/v1/gonum/floats"
)

// Harmonic series search limits
const (
	MaxHarmonicOrder  = 10
	HarmonicTolerance = 0.05 // fraction of the fundamental
)

// Harmonic is a spectral peak matched to one order of the harmonic series
type Harmonic struct {
	Order       int     `json:"order"`
	Frequency   float64 `json:"frequency"`
	MagnitudeDb float64 `json:"magnitude_db"`
	DeviationHz float64 `json:"deviation_hz"` // Peak frequency minus order·f0
}

// HarmonicAnalysis describes how well a frame's peaks follow a harmonic series.
//
// Harmonicity is the summed linear amplitude of the matched harmonics over
// twice the strongest one. It is a relative heuristic, not an energy ratio.
type HarmonicAnalysis struct {
	FundamentalFrequency float64    `json:"fundamental_frequency"`
	Harmonics            []Harmonic `json:"harmonics"`
	Harmonicity          float64    `json:"harmonicity"`
}

// Analyzer matches spectral peaks to harmonic series
type Analyzer struct {
	logger logging.Logger
}

// NewAnalyzer creates a harmonic analyzer using the global logger
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithLogger(logging.WithFields(logging.Fields{
		"component": "harmonic_analyzer",
	}))
}

// NewAnalyzerWithLogger creates a harmonic analyzer reporting through logger
func NewAnalyzerWithLogger(logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Analyzer{logger: logger}
}

// AnalyzeHarmonics looks for orders 1..10 of fundamental among the frame's
// peaks, taking the closest peak within 5% of the fundamental of each
// target. A non-positive fundamental or a nil frame yields an empty result.
func (a *Analyzer) AnalyzeHarmonics(frame *spectral.SpectralFrame, fundamental float64) HarmonicAnalysis {
	result := HarmonicAnalysis{
		FundamentalFrequency: fundamental,
		Harmonics:            make([]Harmonic, 0),
	}
	if fundamental <= 0 || frame == nil {
		a.logger.Warn("No usable fundamental or spectrum, skipping harmonic analysis", logging.Fields{
			"function":    "AnalyzeHarmonics",
			"fundamental": fundamental,
			"has_frame":   frame != nil,
		})
		return result
	}

	tolerance := HarmonicTolerance * fundamental

	for order := 1; order <= MaxHarmonicOrder; order++ {
		target := fundamental * float64(order)

		best := -1
		bestDist := math.Inf(1)
		for i, p := range frame.Peaks {
			dist := math.Abs(p.Frequency - target)
			if dist <= tolerance && dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best < 0 {
			continue
		}

		peak := frame.Peaks[best]
		result.Harmonics = append(result.Harmonics, Harmonic{
			Order:       order,
			Frequency:   peak.Frequency,
			MagnitudeDb: peak.MagnitudeDb,
			DeviationHz: peak.Frequency - target,
		})
	}

	result.Harmonicity = harmonicity(result.Harmonics)
	return result
}

func harmonicity(harmonics []Harmonic) float64 {
	if len(harmonics) == 0 {
		return 0
	}

	amplitudes := make([]float64, len(harmonics))
	for i, h := range harmonics {
		amplitudes[i] = math.Pow(10, h.MagnitudeDb/20)
	}

	strongest := floats.Max(amplitudes)
	if strongest == 0 {
		return 0
	}

	return floats.Sum(amplitudes) / (2 * strongest)
}

// Missing returns the orders in 1..10 that had no matching peak
func (h HarmonicAnalysis) Missing() []int {
	found := make(map[int]bool, len(h.Harmonics))
	for _, hm := range h.Harmonics {
		found[hm.Order] = true
	}

	missing := make([]int, 0)
	if h.FundamentalFrequency <= 0 {
		return missing
	}
	for order := 1; order <= MaxHarmonicOrder; order++ {
		if !found[order] {
			missing = append(missing, order)
		}
	}
	return missing
}
