package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/algorithms/filters"
	"github.com/RyanBlaney/sonido-score/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
	"github.com/RyanBlaney/sonido-score/algorithms/temporal"
	"github.com/RyanBlaney/sonido-score/algorithms/tonal"
	"github.com/RyanBlaney/sonido-score/config"
	"github.com/RyanBlaney/sonido-score/logging"
)

// Result is the full analysis of one buffer
type Result struct {
	SampleRate     int                       `json:"sample_rate"`
	Duration       float64                   `json:"duration"` // Seconds of audio analyzed
	Spectrum       *spectral.SpectralFrame   `json:"spectrum"`
	Pitch          tonal.Pitch               `json:"pitch"`
	Harmonics      harmonic.HarmonicAnalysis `json:"harmonics"`
	Notes          []tonal.DetectedNote      `json:"notes"`
	Chords         []tonal.DetectedChord     `json:"chords"`
	Glissandos     []tonal.Glissando         `json:"glissandos"`
	Rhythm         *temporal.RhythmAnalysis  `json:"rhythm"`
	ProcessingTime time.Duration             `json:"processing_time"`
}

// ChunkResult is the analysis of a short chunk of a longer signal
type ChunkResult struct {
	SampleRate     int                          `json:"sample_rate"`
	Duration       float64                      `json:"duration"`
	Spectrum       *spectral.SpectralFrame      `json:"spectrum"`
	Pitch          tonal.Pitch                  `json:"pitch"`
	Harmonics      harmonic.HarmonicAnalysis    `json:"harmonics"`
	Beats          *temporal.BeatTrackingResult `json:"beats,omitempty"` // Nil when beat tracking is disabled
	ProcessingTime time.Duration                `json:"processing_time"`
}

// Engine runs every analysis stage over sample buffers. It holds only its
// configuration and stateless analyzers, so one Engine can serve concurrent
// calls.
type Engine struct {
	cfg       config.AnalysisConfig
	spectrum  *spectral.Analyzer
	pitch     *tonal.PitchDetector
	harmonics *harmonic.Analyzer
	notes     *tonal.NoteSegmenter
	chords    *tonal.ChordIdentifier
	rhythm    *temporal.RhythmAnalyzer
	logger    logging.Logger
}

// NewEngine creates an engine using the global logger
func NewEngine(cfg config.AnalysisConfig) (*Engine, error) {
	return NewEngineWithLogger(cfg, logging.WithFields(logging.Fields{
		"component": "analysis_engine",
	}))
}

// NewEngineWithLogger validates cfg and creates an engine reporting through logger
func NewEngineWithLogger(cfg config.AnalysisConfig, logger logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	return &Engine{
		cfg:       cfg,
		spectrum:  spectral.NewAnalyzerWithLogger(logger),
		pitch:     tonal.NewPitchDetectorWithLogger(logger),
		harmonics: harmonic.NewAnalyzerWithLogger(logger),
		notes:     tonal.NewNoteSegmenterWithLogger(logger),
		chords:    tonal.NewChordIdentifierWithLogger(logger),
		rhythm:    temporal.NewRhythmAnalyzerWithLogger(logger),
		logger:    logger,
	}, nil
}

// Config returns the engine's configuration
func (e *Engine) Config() config.AnalysisConfig {
	return e.cfg
}

// Analyze runs the spectral snapshot, rhythm analysis and note segmentation
// concurrently, then identifies chords and glissandos from the notes
func (e *Engine) Analyze(ctx context.Context, buf common.SampleBuffer) (*Result, error) {
	const op = "analysis.Analyze"

	if err := buf.Validate(op); err != nil {
		return nil, err
	}
	buf = filters.Preprocess(buf, e.cfg.Preprocess)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":    "Analyze",
		"samples":     buf.Len(),
		"sample_rate": buf.SampleRate,
	})

	result := &Result{
		SampleRate: buf.SampleRate,
		Duration:   buf.Seconds(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		frame, pitch, harmonics, err := e.snapshot(buf)
		if err != nil {
			return fmt.Errorf("spectral snapshot: %w", err)
		}
		result.Spectrum, result.Pitch, result.Harmonics = frame, pitch, harmonics
		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		rhythm, err := e.rhythm.AnalyzeRhythm(buf.Samples, buf.SampleRate, e.cfg.Rhythm)
		if err != nil {
			return fmt.Errorf("rhythm analysis: %w", err)
		}
		result.Rhythm = rhythm
		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		notes, err := e.notes.DetectNotes(buf.Samples, buf.SampleRate, e.cfg.Notes)
		if err != nil {
			return fmt.Errorf("note segmentation: %w", err)
		}
		result.Notes = notes
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(err, "Analysis failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Chords = make([]tonal.DetectedChord, 0)
	if e.cfg.Notes.EnableChordDetection && len(result.Notes) > 0 {
		chords, err := e.chords.DetectChords(result.Notes, e.cfg.Chords)
		if err != nil {
			return nil, fmt.Errorf("chord identification: %w", err)
		}
		result.Chords = chords
	}

	glissandos, err := tonal.DetectGlissandos(result.Notes, e.cfg.Glissando)
	if err != nil {
		return nil, fmt.Errorf("glissando detection: %w", err)
	}
	result.Glissandos = glissandos

	result.ProcessingTime = time.Since(start)

	logger.Info("Analysis complete", logging.Fields{
		"duration":        result.Duration,
		"notes":           len(result.Notes),
		"chords":          len(result.Chords),
		"bpm":             result.Rhythm.BPM,
		"processing_time": result.ProcessingTime,
	})

	return result, nil
}

// AnalyzeChunk computes the spectral snapshot of a short chunk and, when
// enabled, tracks beats at its end. A non-positive currentBPM starts from
// the default tempo; a negative lastBeatTime lets the tracker pick one.
func (e *Engine) AnalyzeChunk(ctx context.Context, buf common.SampleBuffer, currentBPM, lastBeatTime float64) (*ChunkResult, error) {
	const op = "analysis.AnalyzeChunk"

	if err := buf.Validate(op); err != nil {
		return nil, err
	}
	buf = filters.Preprocess(buf, e.cfg.Preprocess)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if currentBPM <= 0 {
		currentBPM = temporal.DefaultBPM
	}

	start := time.Now()
	result := &ChunkResult{
		SampleRate: buf.SampleRate,
		Duration:   buf.Seconds(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		frame, pitch, harmonics, err := e.snapshot(buf)
		if err != nil {
			return fmt.Errorf("spectral snapshot: %w", err)
		}
		result.Spectrum, result.Pitch, result.Harmonics = frame, pitch, harmonics
		return nil
	})

	if e.cfg.Rhythm.EnableBeatTracking {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			beats, err := e.rhythm.TrackBeats(buf.Samples, buf.SampleRate, currentBPM, lastBeatTime, e.cfg.Rhythm)
			if err != nil {
				return fmt.Errorf("beat tracking: %w", err)
			}
			result.Beats = beats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.ProcessingTime = time.Since(start)

	e.logger.Debug("Chunk analysis complete", logging.Fields{
		"function":        "AnalyzeChunk",
		"samples":         buf.Len(),
		"pitch_found":     result.Pitch.Found,
		"processing_time": result.ProcessingTime,
	})

	return result, nil
}

// AnalyzeBatch analyzes every buffer with at most EffectiveWorkers clips in
// flight. Results keep the input order. The first failure cancels the rest.
func (e *Engine) AnalyzeBatch(ctx context.Context, bufs []common.SampleBuffer) ([]*Result, error) {
	results := make([]*Result, len(bufs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.EffectiveWorkers())

	for i, buf := range bufs {
		g.Go(func() error {
			res, err := e.Analyze(gctx, buf)
			if err != nil {
				return fmt.Errorf("clip %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("Batch analysis complete", logging.Fields{
		"function": "AnalyzeBatch",
		"clips":    len(bufs),
		"workers":  e.cfg.EffectiveWorkers(),
	})

	return results, nil
}

// snapshot computes the spectrum of the leading window, the pitch of the
// same window and, if a pitch was found, its harmonic series
func (e *Engine) snapshot(buf common.SampleBuffer) (*spectral.SpectralFrame, tonal.Pitch, harmonic.HarmonicAnalysis, error) {
	frame, err := e.spectrum.AnalyzeSpectrum(buf.Samples, buf.SampleRate, e.cfg.Spectrum)
	if err != nil {
		return nil, tonal.NoPitch, harmonic.HarmonicAnalysis{}, err
	}

	window := buf.Slice(0, e.cfg.Spectrum.WindowSize)
	pitch, err := e.pitch.DetectPitch(window.Samples, window.SampleRate, e.cfg.Pitch)
	if err != nil {
		return nil, tonal.NoPitch, harmonic.HarmonicAnalysis{}, err
	}

	harmonics := harmonic.HarmonicAnalysis{Harmonics: make([]harmonic.Harmonic, 0)}
	if pitch.Found {
		harmonics = e.harmonics.AnalyzeHarmonics(frame, pitch.Frequency)
	}

	return frame, pitch, harmonics, nil
}
