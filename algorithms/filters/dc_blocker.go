package filters

import (
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// DCBlocker is a one-pole high-pass filter removing the 0 Hz component:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// Reference: J. O. Smith III, "Introduction to Digital Filters",
// https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole float64
	x1   float64
	y1   float64
}

// NewDCBlocker places the pole for a -3dB cutoff near cutoffHz, using
// R = 1 - 2*pi*fc/fs clamped to (0, 1)
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	pole := 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
	return &DCBlocker{pole: common.Clamp(pole, 0.001, 0.999)}
}

// Pole returns R
func (dc *DCBlocker) Pole() float64 {
	return dc.pole
}

// Process filters one sample
func (dc *DCBlocker) Process(x float64) float64 {
	y := x - dc.x1 + dc.pole*dc.y1
	dc.x1 = x
	dc.y1 = y
	return y
}

// ProcessBuffer filters input into a new slice, carrying state across calls
func (dc *DCBlocker) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, x := range input {
		output[i] = dc.Process(x)
	}
	return output
}

// Reset clears the filter history
func (dc *DCBlocker) Reset() {
	dc.x1, dc.y1 = 0, 0
}
