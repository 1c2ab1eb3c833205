package spectral

import (
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/windowing"
	"github.com/RyanBlaney/sonido-score/logging"
)

// MagnitudeFloor is added to every bin magnitude before the dB conversion
const MagnitudeFloor = math.SmallestNonzeroFloat64

// SpectrumOptions configures single-frame spectral analysis
type SpectrumOptions struct {
	WindowSize      int            `json:"window_size" mapstructure:"window_size"`
	WindowType      windowing.Type `json:"window_type" mapstructure:"window_type"`
	MinPeakHeightDb float64        `json:"min_peak_height_db" mapstructure:"min_peak_height_db"`
	PeakThresholdDb float64        `json:"peak_threshold_db" mapstructure:"peak_threshold_db"`
}

// DefaultSpectrumOptions returns a 2048-point Hann analysis with peaks above -60 dB
func DefaultSpectrumOptions() SpectrumOptions {
	return SpectrumOptions{
		WindowSize:      2048,
		WindowType:      windowing.Hann,
		MinPeakHeightDb: -60.0,
		PeakThresholdDb: 3.0,
	}
}

// Validate checks the options can drive an analysis
func (o SpectrumOptions) Validate() error {
	if o.WindowSize <= 0 {
		return common.NewInputError("spectral.SpectrumOptions", "window size must be positive, got %d", o.WindowSize)
	}
	if _, err := windowing.ParseType(string(o.WindowType)); err != nil {
		return common.NewInputError("spectral.SpectrumOptions", "%v", err)
	}
	return nil
}

// Peak is a local maximum of a magnitude spectrum
type Peak struct {
	Frequency   float64 `json:"frequency"`
	MagnitudeDb float64 `json:"magnitude_db"`
	BinIndex    int     `json:"bin_index"`
}

// SpectralFrame is the dB magnitude spectrum of one analysis window.
// Frequencies and MagnitudesDb both hold FFTSize/2+1 bins.
type SpectralFrame struct {
	Frequencies         []float64 `json:"frequencies"`
	MagnitudesDb        []float64 `json:"magnitudes_db"`
	Peaks               []Peak    `json:"peaks"`
	SampleRate          int       `json:"sample_rate"`
	WindowSize          int       `json:"window_size"`
	FFTSize             int       `json:"fft_size"`
	FrequencyResolution float64   `json:"frequency_resolution"`
}

// NearestPeak returns the peak closest to frequency, or false when the frame has none
func (f *SpectralFrame) NearestPeak(frequency float64) (Peak, bool) {
	if f == nil || len(f.Peaks) == 0 {
		return Peak{}, false
	}

	best := f.Peaks[0]
	bestDist := math.Abs(best.Frequency - frequency)
	for _, p := range f.Peaks[1:] {
		if d := math.Abs(p.Frequency - frequency); d < bestDist {
			best, bestDist = p, d
		}
	}

	return best, true
}

// Analyzer turns sample windows into dB spectra and spectrograms.
// It holds no per-call state and can be shared between goroutines.
type Analyzer struct {
	fft    *FFT
	logger logging.Logger
}

// NewAnalyzer creates a spectral analyzer using the global logger
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithLogger(logging.WithFields(logging.Fields{
		"component": "spectral_analyzer",
	}))
}

// NewAnalyzerWithLogger creates a spectral analyzer reporting through logger
func NewAnalyzerWithLogger(logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Analyzer{
		fft:    NewFFT(),
		logger: logger,
	}
}

// AnalyzeSpectrum windows the first WindowSize samples, transforms them and
// picks peaks. Shorter inputs are zero-padded. All-zero input is not an
// error: every bin sits at 20·log10(MagnitudeFloor) and no peak is reported.
func (a *Analyzer) AnalyzeSpectrum(samples []float64, sampleRate int, opts SpectrumOptions) (*SpectralFrame, error) {
	const op = "spectral.AnalyzeSpectrum"

	if err := common.ValidateSamples(op, samples, sampleRate); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	win, err := windowing.New(opts.WindowType, opts.WindowSize)
	if err != nil {
		return nil, err
	}

	frame := win.Apply(samples)
	if common.IsSilent(frame) {
		a.logger.Warn("Silent analysis window, spectrum is at the magnitude floor", logging.Fields{
			"function":    "AnalyzeSpectrum",
			"window_size": opts.WindowSize,
			"sample_rate": sampleRate,
		})
	}

	magsDb, fftSize := a.frameMagnitudesDb(frame)
	freqs := binFrequencies(len(magsDb), fftSize, sampleRate)

	return &SpectralFrame{
		Frequencies:         freqs,
		MagnitudesDb:        magsDb,
		Peaks:               FindPeaks(freqs, magsDb, opts.MinPeakHeightDb, opts.PeakThresholdDb),
		SampleRate:          sampleRate,
		WindowSize:          opts.WindowSize,
		FFTSize:             fftSize,
		FrequencyResolution: float64(sampleRate) / float64(fftSize),
	}, nil
}

// frameMagnitudesDb transforms an already windowed frame into bins 0..M/2
func (a *Analyzer) frameMagnitudesDb(frame []float64) ([]float64, int) {
	spectrum := a.fft.Compute(frame)
	fftSize := len(spectrum)

	magsDb := make([]float64, fftSize/2+1)
	for i := range magsDb {
		magsDb[i] = ToDecibels(Magnitude(spectrum[i]))
	}

	return magsDb, fftSize
}

// ToDecibels converts a linear magnitude to 20·log10(mag+floor)
func ToDecibels(magnitude float64) float64 {
	return 20 * math.Log10(magnitude+MagnitudeFloor)
}

func binFrequencies(bins, fftSize, sampleRate int) []float64 {
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}
	return freqs
}

// FindPeaks returns the interior bins that are strict local maxima, exceed
// minHeightDb, and stand more than thresholdDb above both neighbours.
// Peaks are ordered by bin index.
func FindPeaks(freqs, magsDb []float64, minHeightDb, thresholdDb float64) []Peak {
	peaks := make([]Peak, 0)

	n := min(len(freqs), len(magsDb))
	for i := 1; i < n-1; i++ {
		mag := magsDb[i]
		left := mag - magsDb[i-1]
		right := mag - magsDb[i+1]

		if left <= 0 || right <= 0 || mag <= minHeightDb {
			continue
		}
		if left > thresholdDb && right > thresholdDb {
			peaks = append(peaks, Peak{
				Frequency:   freqs[i],
				MagnitudeDb: mag,
				BinIndex:    i,
			})
		}
	}

	return peaks
}
