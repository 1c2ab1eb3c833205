package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-score/logging"
)

const testSampleRate = 44100

// clickTrack places an 80ms decaying 1kHz burst every period seconds,
// starting at t=0. gain scales click m.
func clickTrack(seconds, period float64, gain func(m int) float64) []float64 {
	n := int(seconds * testSampleRate)
	x := make([]float64, n)
	clickLen := int(0.08 * testSampleRate)

	for m := 0; ; m++ {
		start := int(math.Round(float64(m) * period * testSampleRate))
		if start >= n {
			break
		}
		g := gain(m)
		for j := 0; j < clickLen && start+j < n; j++ {
			t := float64(j) / testSampleRate
			x[start+j] = g * math.Sin(2*math.Pi*1000*t) * math.Exp(-t/0.04)
		}
	}
	return x
}

func unitGain(int) float64 { return 1.0 }

func quietLogger() logging.Logger {
	return &logging.NoOpLogger{}
}
