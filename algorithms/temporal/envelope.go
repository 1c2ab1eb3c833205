package temporal

import (
	"math"
)

// Envelope provides amplitude envelope extraction
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// FrameCount returns the number of full frames of frameSize that fit in n
// samples when advancing by hopSize
func FrameCount(n, frameSize, hopSize int) int {
	if n < frameSize || frameSize <= 0 || hopSize <= 0 {
		return 0
	}
	return (n-frameSize)/hopSize + 1
}

// ComputeMeanAbs computes the mean absolute amplitude of each frame
func (e *Envelope) ComputeMeanAbs(signal []float64, frameSize, hopSize int) []float64 {
	return framed(signal, frameSize, hopSize, func(frame []float64) float64 {
		sum := 0.0
		for _, s := range frame {
			sum += math.Abs(s)
		}
		return sum / float64(frameSize)
	})
}

// ComputeRMS computes RMS envelope with given frame and hop sizes
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	return framed(signal, frameSize, hopSize, func(frame []float64) float64 {
		sumSquares := 0.0
		for _, s := range frame {
			sumSquares += s * s
		}
		return math.Sqrt(sumSquares / float64(frameSize))
	})
}

func framed(signal []float64, frameSize, hopSize int, reduce func([]float64) float64) []float64 {
	numFrames := FrameCount(len(signal), frameSize, hopSize)
	envelope := make([]float64, numFrames)

	for i := range numFrames {
		start := i * hopSize
		envelope[i] = reduce(signal[start : start+frameSize])
	}

	return envelope
}
