package spectral

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/windowing"
	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amplitude float64, sampleRate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return x
}

func newTestAnalyzer() *Analyzer {
	return NewAnalyzerWithLogger(&logging.NoOpLogger{})
}

func TestAnalyzeSpectrumBinCenteredSine(t *testing.T) {
	const (
		sampleRate = 44100
		n          = 1024
		bin        = 40
	)
	freq := float64(bin) * sampleRate / n

	opts := SpectrumOptions{
		WindowSize:      n,
		WindowType:      windowing.Rectangular,
		MinPeakHeightDb: -60,
		PeakThresholdDb: 3,
	}

	frame, err := newTestAnalyzer().AnalyzeSpectrum(sine(freq, 0.02, sampleRate, n), sampleRate, opts)
	require.NoError(t, err)

	require.Len(t, frame.Frequencies, n/2+1)
	require.Len(t, frame.MagnitudesDb, n/2+1)
	assert.InDelta(t, float64(sampleRate)/n, frame.FrequencyResolution, 1e-9)

	require.Len(t, frame.Peaks, 1)
	peak := frame.Peaks[0]
	assert.Equal(t, bin, peak.BinIndex)
	assert.Less(t, math.Abs(peak.Frequency-freq), frame.FrequencyResolution)
	// |X[k]| = A·N/2 for a bin-centred sinusoid
	assert.InDelta(t, 20*math.Log10(0.02*n/2), peak.MagnitudeDb, 1e-6)
}

func TestFindPeaksSingleSpikeOverFlatFloor(t *testing.T) {
	const bins = 513
	freqs := make([]float64, bins)
	mags := make([]float64, bins)
	for i := range mags {
		freqs[i] = float64(i) * 10
		mags[i] = -80
	}
	mags[200] = -60

	peaks := FindPeaks(freqs, mags, -100, 3)

	require.Len(t, peaks, 1)
	assert.Equal(t, 200, peaks[0].BinIndex)
	assert.InDelta(t, 2000.0, peaks[0].Frequency, 10)
	assert.Equal(t, -60.0, peaks[0].MagnitudeDb)
}

func TestFindPeaksRules(t *testing.T) {
	freqs := []float64{0, 1, 2, 3, 4, 5, 6}

	t.Run("edges are never peaks", func(t *testing.T) {
		peaks := FindPeaks(freqs, []float64{0, -50, -50, -50, -50, -50, 0}, -100, 1)
		assert.Empty(t, peaks)
	})

	t.Run("plateaus are not strict maxima", func(t *testing.T) {
		peaks := FindPeaks(freqs, []float64{-50, -40, -40, -50, -50, -50, -50}, -100, 1)
		assert.Empty(t, peaks)
	})

	t.Run("below minimum height", func(t *testing.T) {
		peaks := FindPeaks(freqs, []float64{-90, -70, -90, -90, -90, -90, -90}, -60, 1)
		assert.Empty(t, peaks)
	})

	t.Run("one shoulder under threshold", func(t *testing.T) {
		peaks := FindPeaks(freqs, []float64{-50, -40, -41, -50, -50, -50, -50}, -100, 3)
		assert.Empty(t, peaks)
	})

	t.Run("ordered by bin", func(t *testing.T) {
		peaks := FindPeaks(freqs, []float64{-50, -20, -50, -50, -30, -50, -50}, -100, 3)
		require.Len(t, peaks, 2)
		assert.Equal(t, 1, peaks[0].BinIndex)
		assert.Equal(t, 4, peaks[1].BinIndex)
	})
}

func TestAnalyzeSpectrumSilence(t *testing.T) {
	frame, err := newTestAnalyzer().AnalyzeSpectrum(make([]float64, 2048), 44100, DefaultSpectrumOptions())
	require.NoError(t, err)

	floor := 20 * math.Log10(MagnitudeFloor)
	for _, m := range frame.MagnitudesDb {
		assert.Equal(t, floor, m)
	}
	assert.Empty(t, frame.Peaks)
}

func TestAnalyzeSpectrumIdempotent(t *testing.T) {
	a := newTestAnalyzer()
	x := sine(523.25, 0.4, 44100, 3000)
	opts := DefaultSpectrumOptions()

	first, err := a.AnalyzeSpectrum(x, 44100, opts)
	require.NoError(t, err)
	second, err := a.AnalyzeSpectrum(x, 44100, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyzeSpectrumPadsShortInput(t *testing.T) {
	frame, err := newTestAnalyzer().AnalyzeSpectrum(sine(440, 0.5, 44100, 300), 44100, DefaultSpectrumOptions())
	require.NoError(t, err)
	assert.Len(t, frame.MagnitudesDb, 1025)
}

func TestAnalyzeSpectrumNonPowerOfTwoWindow(t *testing.T) {
	opts := DefaultSpectrumOptions()
	opts.WindowSize = 1000

	frame, err := newTestAnalyzer().AnalyzeSpectrum(sine(440, 0.5, 44100, 2000), 44100, opts)
	require.NoError(t, err)
	assert.Equal(t, 1024, frame.FFTSize)
	assert.Len(t, frame.Frequencies, 513)
}

func TestAnalyzeSpectrumInvalidInput(t *testing.T) {
	a := newTestAnalyzer()
	opts := DefaultSpectrumOptions()

	_, err := a.AnalyzeSpectrum(nil, 44100, opts)
	assert.True(t, common.IsInvalidInput(err))

	_, err = a.AnalyzeSpectrum([]float64{1}, 0, opts)
	assert.True(t, common.IsInvalidInput(err))

	opts.WindowSize = 0
	_, err = a.AnalyzeSpectrum([]float64{1}, 44100, opts)
	assert.True(t, common.IsInvalidInput(err))

	opts = DefaultSpectrumOptions()
	opts.WindowType = "triangle"
	_, err = a.AnalyzeSpectrum([]float64{1}, 44100, opts)
	assert.True(t, common.IsInvalidInput(err))
}

func TestNearestPeak(t *testing.T) {
	frame := &SpectralFrame{Peaks: []Peak{{Frequency: 100}, {Frequency: 450}, {Frequency: 900}}}

	p, ok := frame.NearestPeak(440)
	require.True(t, ok)
	assert.Equal(t, 450.0, p.Frequency)

	_, ok = (&SpectralFrame{}).NearestPeak(440)
	assert.False(t, ok)
}
