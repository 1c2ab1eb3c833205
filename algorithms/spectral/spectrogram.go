package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/windowing"
	"github.com/RyanBlaney/sonido-score/logging"
)

// SpectrogramOptions configures short-time spectral analysis
type SpectrogramOptions struct {
	WindowSize int            `json:"window_size" mapstructure:"window_size"`
	HopSize    int            `json:"hop_size" mapstructure:"hop_size"`
	WindowType windowing.Type `json:"window_type" mapstructure:"window_type"`
}

// DefaultSpectrogramOptions returns 2048-point Hann frames at 50% overlap
func DefaultSpectrogramOptions() SpectrogramOptions {
	return SpectrogramOptions{
		WindowSize: 2048,
		HopSize:    1024,
		WindowType: windowing.Hann,
	}
}

// Validate checks the options can drive an analysis
func (o SpectrogramOptions) Validate() error {
	const op = "spectral.SpectrogramOptions"

	if o.WindowSize <= 0 {
		return common.NewInputError(op, "window size must be positive, got %d", o.WindowSize)
	}
	if o.HopSize <= 0 {
		return common.NewInputError(op, "hop size must be positive, got %d", o.HopSize)
	}
	if _, err := windowing.ParseType(string(o.WindowType)); err != nil {
		return common.NewInputError(op, "%v", err)
	}
	return nil
}

// Spectrogram holds the dB magnitude of every frame
type Spectrogram struct {
	Data           [][]float64 `json:"data"`            // Time x Frequency magnitude matrix (dB)
	Frequencies    []float64   `json:"frequencies"`     // Bin centre frequencies
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // Analysis window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// FrameTime returns the start time of frame i in seconds
func (s *Spectrogram) FrameTime(i int) float64 {
	return float64(i) * s.TimeResolution
}

// GenerateSpectrogram computes floor((len-window)/hop)+1 frames, each
// identical to AnalyzeSpectrum's magnitudes for the same window position.
// Frames are spread over a worker pool; every worker writes its own rows.
func (a *Analyzer) GenerateSpectrogram(samples []float64, sampleRate int, opts SpectrogramOptions) (*Spectrogram, error) {
	const op = "spectral.GenerateSpectrogram"

	if err := common.ValidateSamples(op, samples, sampleRate); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(samples) < opts.WindowSize {
		return nil, common.NewInputError(op, "signal (%d samples) is shorter than one window (%d)", len(samples), opts.WindowSize)
	}

	win, err := windowing.New(opts.WindowType, opts.WindowSize)
	if err != nil {
		return nil, err
	}

	numFrames := (len(samples)-opts.WindowSize)/opts.HopSize + 1
	fftSize := common.NextPowerOfTwo(opts.WindowSize)
	freqBins := fftSize/2 + 1

	data := make([][]float64, numFrames)
	numWorkers := getOptimalWorkerCount(numFrames)

	logger := a.logger.WithFields(logging.Fields{
		"function": "GenerateSpectrogram",
	})
	logger.Debug("Computing spectrogram", logging.Fields{
		"frames":      numFrames,
		"window_size": opts.WindowSize,
		"hop_size":    opts.HopSize,
		"workers":     numWorkers,
	})

	jobs := make(chan int, numFrames)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		frameErr error
	)
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, win.Size())

			for frameIdx := range jobs {
				start := frameIdx * opts.HopSize
				row, err := a.spectrogramRow(win, frameBuffer, samples[start:start+opts.WindowSize])
				if err != nil {
					errOnce.Do(func() { frameErr = fmt.Errorf("frame %d: %w", frameIdx, err) })
					continue
				}
				data[frameIdx] = row
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	if frameErr != nil {
		logger.Error(frameErr, "Failed to window spectrogram frame")
		return nil, frameErr
	}

	return &Spectrogram{
		Data:           data,
		Frequencies:    binFrequencies(freqBins, fftSize, sampleRate),
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     opts.WindowSize,
		HopSize:        opts.HopSize,
		FreqResolution: float64(sampleRate) / float64(fftSize),
		TimeResolution: float64(opts.HopSize) / float64(sampleRate),
	}, nil
}

// spectrogramRow windows frame into buf and returns its dB magnitudes
func (a *Analyzer) spectrogramRow(win *windowing.Window, buf, frame []float64) ([]float64, error) {
	if err := win.ApplyInto(buf, frame); err != nil {
		return nil, err
	}
	magsDb, _ := a.frameMagnitudesDb(buf)
	return magsDb, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
