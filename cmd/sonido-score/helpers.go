package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/analysis"
	"github.com/RyanBlaney/sonido-score/config"
	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/transcode"
)

// loadAnalysisConfig reads the analysis settings from the global viper
func loadAnalysisConfig() (*config.AnalysisConfig, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// stdinPath names standard input as a file argument
const stdinPath = "-"

func newDecoder() (*transcode.Decoder, error) {
	cfg := transcode.DefaultDecoderConfig()
	cfg.FFmpegPath = viper.GetString("ffmpeg")
	cfg.FFprobePath = viper.GetString("ffprobe")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}
	return transcode.NewDecoder(cfg), nil
}

// loadBuffer decodes path to mono and reports validation warnings. A path
// of "-" reads stdin, which must then be non-nil.
func loadBuffer(ctx context.Context, path string, stdin io.Reader) (common.SampleBuffer, error) {
	decoder, err := newDecoder()
	if err != nil {
		return common.SampleBuffer{}, err
	}

	var data *transcode.AudioData
	if path == stdinPath {
		if stdin == nil {
			return common.SampleBuffer{}, fmt.Errorf("reading from stdin is not supported here")
		}
		data, err = transcode.LoadReader(ctx, stdin, decoder)
	} else {
		data, err = transcode.Load(ctx, path, decoder)
	}
	if err != nil {
		return common.SampleBuffer{}, err
	}

	buf, err := data.Mono()
	if err != nil {
		return common.SampleBuffer{}, err
	}

	report := analysis.ValidateBuffer(buf)
	for _, w := range report.Warnings {
		logging.Warn(w, logging.Fields{"file": path})
	}
	if !report.Valid {
		return common.SampleBuffer{}, fmt.Errorf("%s: %s", path, strings.Join(report.Errors, "; "))
	}

	return buf, nil
}

// writeOutput encodes v as JSON or YAML. YAML keys follow the json tags.
func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case "yaml", "yml":
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()

	default:
		return fmt.Errorf("unknown output format %q (json, yaml)", format)
	}
}
