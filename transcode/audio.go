package transcode

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // Interleaved samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
	Codec      string        `json:"codec,omitempty"`
}

// Mono returns the audio as a single-channel analysis buffer, averaging
// interleaved channels when there is more than one
func (a *AudioData) Mono() (common.SampleBuffer, error) {
	if a == nil {
		return common.SampleBuffer{}, fmt.Errorf("audio data cannot be nil")
	}

	samples, err := MixToMono(a.PCM, a.Channels)
	if err != nil {
		return common.SampleBuffer{}, err
	}
	return common.NewSampleBuffer(samples, a.SampleRate), nil
}

// MixToMono averages each frame of an interleaved signal. A trailing
// partial frame is dropped. One channel is returned as is.
func MixToMono(interleaved []float64, channels int) ([]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive: %d", channels)
	}
	if channels == 1 {
		return interleaved, nil
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono, nil
}

func durationOf(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
