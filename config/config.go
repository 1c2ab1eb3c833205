package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-score/algorithms/filters"
	"github.com/RyanBlaney/sonido-score/algorithms/spectral"
	"github.com/RyanBlaney/sonido-score/algorithms/temporal"
	"github.com/RyanBlaney/sonido-score/algorithms/tonal"
)

// Quality selects a preset trading resolution for speed
type Quality string

const (
	QualityLow          Quality = "low"
	QualityMedium       Quality = "medium"
	QualityHigh         Quality = "high"
	QualityProfessional Quality = "professional"
)

type qualityPreset struct {
	windowSize int
	overlap    float64
}

var qualityPresets = map[Quality]qualityPreset{
	QualityLow:          {windowSize: 1024, overlap: 0.25},
	QualityMedium:       {windowSize: 2048, overlap: 0.5},
	QualityHigh:         {windowSize: 4096, overlap: 0.75},
	QualityProfessional: {windowSize: 8192, overlap: 0.875},
}

// ParseQuality accepts preset names case-insensitively
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := qualityPresets[q]; !ok {
		return "", fmt.Errorf("unknown quality %q (low, medium, high, professional)", s)
	}
	return q, nil
}

// AnalysisConfig aggregates the options of every analysis stage
type AnalysisConfig struct {
	Quality     Quality                     `json:"quality" mapstructure:"quality"`
	Workers     int                         `json:"workers" mapstructure:"workers"` // Batch concurrency, 0 for GOMAXPROCS
	Preprocess  filters.PreprocessOptions   `json:"preprocess" mapstructure:"preprocess"`
	Spectrum    spectral.SpectrumOptions    `json:"spectrum" mapstructure:"spectrum"`
	Spectrogram spectral.SpectrogramOptions `json:"spectrogram" mapstructure:"spectrogram"`
	Pitch       tonal.PitchOptions          `json:"pitch" mapstructure:"pitch"`
	Notes       tonal.NoteOptions           `json:"notes" mapstructure:"notes"`
	Chords      tonal.ChordOptions          `json:"chords" mapstructure:"chords"`
	Glissando   tonal.GlissandoOptions      `json:"glissando" mapstructure:"glissando"`
	Rhythm      temporal.RhythmOptions      `json:"rhythm" mapstructure:"rhythm"`
}

// Default returns the medium preset with every stage at its defaults
func Default() AnalysisConfig {
	return AnalysisConfig{
		Quality:     QualityMedium,
		Workers:     runtime.GOMAXPROCS(0),
		Preprocess:  filters.DefaultPreprocessOptions(),
		Spectrum:    spectral.DefaultSpectrumOptions(),
		Spectrogram: spectral.DefaultSpectrogramOptions(),
		Pitch:       tonal.DefaultPitchOptions(),
		Notes:       tonal.DefaultNoteOptions(),
		Chords:      tonal.DefaultChordOptions(),
		Glissando:   tonal.DefaultGlissandoOptions(),
		Rhythm:      temporal.DefaultRhythmOptions(),
	}
}

// ForQuality returns Default with the spectrum and spectrogram sized for q
func ForQuality(q Quality) (AnalysisConfig, error) {
	cfg := Default()
	if err := cfg.ApplyQuality(q); err != nil {
		return AnalysisConfig{}, err
	}
	return cfg, nil
}

// ApplyQuality resizes the spectrum window and the spectrogram frames
func (c *AnalysisConfig) ApplyQuality(q Quality) error {
	preset, ok := qualityPresets[q]
	if !ok {
		return fmt.Errorf("unknown quality %q", q)
	}

	c.Quality = q
	c.Spectrum.WindowSize = preset.windowSize
	c.Spectrogram.WindowSize = preset.windowSize
	c.Spectrogram.HopSize = int(float64(preset.windowSize) * (1 - preset.overlap))
	return nil
}

// Validate checks every stage's options
func (c AnalysisConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}

	checks := []struct {
		name     string
		validate func() error
	}{
		{"preprocess", c.Preprocess.Validate},
		{"spectrum", c.Spectrum.Validate},
		{"spectrogram", c.Spectrogram.Validate},
		{"pitch", c.Pitch.Validate},
		{"notes", c.Notes.Validate},
		{"chords", c.Chords.Validate},
		{"glissando", c.Glissando.Validate},
		{"rhythm", c.Rhythm.Validate},
	}
	for _, check := range checks {
		if err := check.validate(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}

// EffectiveWorkers resolves Workers == 0 to GOMAXPROCS
func (c AnalysisConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Load builds a config from v. The "quality" key picks the base preset and
// any other keys set in v override it.
func Load(v *viper.Viper) (*AnalysisConfig, error) {
	cfg := Default()

	if name := v.GetString("quality"); name != "" {
		q, err := ParseQuality(name)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyQuality(q); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	cfg.Quality = Quality(strings.ToLower(string(cfg.Quality)))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
