package common

import "time"

// SampleBuffer is a mono PCM buffer normalized to [-1, 1].
// Analysis code reads Samples but never writes to it.
type SampleBuffer struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// NewSampleBuffer wraps samples without copying them
func NewSampleBuffer(samples []float64, sampleRate int) SampleBuffer {
	return SampleBuffer{Samples: samples, SampleRate: sampleRate}
}

// Validate checks the buffer can be analyzed at all
func (b SampleBuffer) Validate(op string) error {
	return ValidateSamples(op, b.Samples, b.SampleRate)
}

// Len returns the number of samples
func (b SampleBuffer) Len() int {
	return len(b.Samples)
}

// Seconds returns the buffer length in seconds
func (b SampleBuffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Duration returns the buffer length as a time.Duration
func (b SampleBuffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Slice returns the sub-buffer [start, end) clamped to the buffer bounds.
// The returned buffer shares memory with b.
func (b SampleBuffer) Slice(start, end int) SampleBuffer {
	start = max(0, min(start, len(b.Samples)))
	end = max(start, min(end, len(b.Samples)))
	return SampleBuffer{Samples: b.Samples[start:end], SampleRate: b.SampleRate}
}

// ValidateSamples rejects empty buffers and non-positive sample rates
func ValidateSamples(op string, samples []float64, sampleRate int) error {
	if len(samples) == 0 {
		return NewInputError(op, "empty sample buffer")
	}
	if sampleRate <= 0 {
		return NewInputError(op, "sample rate must be positive, got %d", sampleRate)
	}
	return nil
}
