package tonal

import (
	"testing"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPitchSine(t *testing.T) {
	pd := NewPitchDetectorWithLogger(quietLogger())

	for _, freq := range []float64{110, 220, 440, 880} {
		for _, n := range []int{1024, 2048} {
			pitch, err := pd.DetectPitch(sine(freq, 0.8, 44100, n), 44100, DefaultPitchOptions())
			require.NoError(t, err)
			require.True(t, pitch.Found, "freq=%g n=%d", freq, n)
			assert.InDelta(t, freq, pitch.Frequency, freq*0.005, "freq=%g n=%d", freq, n)
			assert.Greater(t, pitch.Clarity, 0.9)
		}
	}
}

func TestDetectPitchSilenceIsNotFound(t *testing.T) {
	pd := NewPitchDetectorWithLogger(quietLogger())

	pitch, err := pd.DetectPitch(make([]float64, 2048), 44100, DefaultPitchOptions())
	require.NoError(t, err)
	assert.False(t, pitch.Found)
	assert.Equal(t, NoPitch, pitch)

	constant := make([]float64, 2048)
	for i := range constant {
		constant[i] = 0.25
	}
	pitch, err = pd.DetectPitch(constant, 44100, DefaultPitchOptions())
	require.NoError(t, err)
	assert.False(t, pitch.Found)
}

func TestDetectPitchEmptyLagRange(t *testing.T) {
	pd := NewPitchDetectorWithLogger(quietLogger())

	// tauMax = 32 is below tauMin = 44
	pitch, err := pd.DetectPitch(sine(440, 0.5, 44100, 64), 44100, DefaultPitchOptions())
	require.NoError(t, err)
	assert.False(t, pitch.Found)
}

func TestDetectPitchDeterministic(t *testing.T) {
	pd := NewPitchDetectorWithLogger(quietLogger())
	x := sine(330, 0.6, 44100, 2048)

	a, err := pd.DetectPitch(x, 44100, DefaultPitchOptions())
	require.NoError(t, err)
	b, err := pd.DetectPitch(x, 44100, DefaultPitchOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDetectPitchInvalidInput(t *testing.T) {
	pd := NewPitchDetectorWithLogger(quietLogger())
	x := sine(440, 0.5, 44100, 1024)

	_, err := pd.DetectPitch(nil, 44100, DefaultPitchOptions())
	assert.True(t, common.IsInvalidInput(err))

	_, err = pd.DetectPitch(x, 0, DefaultPitchOptions())
	assert.True(t, common.IsInvalidInput(err))

	_, err = pd.DetectPitch(x, 44100, PitchOptions{MinFrequency: 500, MaxFrequency: 100, Threshold: 0.1})
	assert.True(t, common.IsInvalidInput(err))

	_, err = pd.DetectPitch(x, 44100, PitchOptions{MinFrequency: 80, MaxFrequency: 1000, Threshold: 1.5})
	assert.True(t, common.IsInvalidInput(err))
}

func TestFindTrough(t *testing.T) {
	cmndf := []float64{1, 0.9, 0.8, 0.5, 0.05, 0.03, 0.02, 0.04, 0.01, 0.5}

	// first value under threshold walks down to its local minimum
	assert.Equal(t, 6, findTrough(cmndf, 2, 9, 0.1))

	// nothing under threshold: global minimum over the range
	assert.Equal(t, 8, findTrough(cmndf, 2, 9, 0.001))

	// descent stops at tauMax
	assert.Equal(t, 3, findTrough([]float64{1, 0.9, 0.2, 0.1}, 2, 3, 0.5))
}

func TestMidiConversions(t *testing.T) {
	assert.Equal(t, 69, FrequencyToMidi(440.0))
	assert.InDelta(t, 440.0, MidiToFrequency(69), 1e-6)
	assert.Equal(t, 60, FrequencyToMidi(261.63))
	assert.InDelta(t, 261.6256, MidiToFrequency(60), 1e-4)

	for midi := 0; midi <= 127; midi++ {
		assert.Equal(t, midi, FrequencyToMidi(MidiToFrequency(midi)))
	}

	assert.Equal(t, 0, FrequencyToMidi(0))
	assert.Equal(t, 0, FrequencyToMidi(1))
	assert.Equal(t, 127, FrequencyToMidi(40000))

	assert.Equal(t, "A4", MidiNoteName(69))
	assert.Equal(t, "C4", MidiNoteName(60))
	assert.Equal(t, "C#-1", MidiNoteName(1))
	assert.Equal(t, "G9", MidiNoteName(127))

	assert.InDelta(t, 0.0, CentsOff(440), 1e-9)
	assert.InDelta(t, 25.0, CentsOff(MidiToFrequency(69)*1.0145453349), 0.01)
}
