package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-score/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" mapstructure:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels" mapstructure:"target_channels"`
	MaxDuration      time.Duration `json:"max_duration" mapstructure:"max_duration"`
	ResampleQuality  string        `json:"resample_quality" mapstructure:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" mapstructure:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" mapstructure:"timeout"` // Per ffmpeg invocation
	// Loudness normalization, off by default so note velocities follow the recording
	EnableNormalization bool    `json:"enable_normalization" mapstructure:"enable_normalization"`
	TargetLUFS          float64 `json:"target_lufs" mapstructure:"target_lufs"`
	TargetPeak          float64 `json:"target_peak" mapstructure:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range" mapstructure:"loudness_range"`
}

// DefaultDecoderConfig returns mono 44.1kHz decoding through ffmpeg on PATH
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		TargetChannels:   1,
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          60 * time.Second,
		TargetLUFS:       -16.0,
		TargetPeak:       -1.0,
		LoudnessRange:    8.0,
	}
}

// Validate checks the decoder configuration without running ffmpeg
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.TargetChannels <= 0 || c.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 1 and 8: %d", c.TargetChannels)
	}
	if c.FFmpegPath == "" || c.FFprobePath == "" {
		return fmt.Errorf("ffmpeg and ffprobe paths must be set")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %v", c.Timeout)
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	return nil
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder turns any ffmpeg-readable input into float64 PCM
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	return NewDecoderWithLogger(config, logging.WithFields(logging.Fields{
		"component": "audio_decoder",
	}))
}

// NewDecoderWithLogger creates a decoder reporting through logger
func NewDecoderWithLogger(config *DecoderConfig, logger logging.Logger) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Decoder{config: config, logger: logger}
}

// DecodeFile probes and decodes an audio file
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	metadata, err := d.Probe(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs(metadata)...)
	output, err := d.run(ctx, d.config.FFmpegPath, args, nil)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	return d.processFFmpegOutput(output, metadata, filename)
}

// DecodeReader decodes audio piped through ffmpeg's stdin
func (d *Decoder) DecodeReader(ctx context.Context, r io.Reader) (*AudioData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio data is empty")
	}

	metadata, err := d.probeBytes(ctx, data)
	if err != nil {
		return nil, err
	}

	args := append([]string{"-i", "pipe:0"}, d.buildFFmpegArgs(metadata)...)
	output, err := d.run(ctx, d.config.FFmpegPath, args, data)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	return d.processFFmpegOutput(output, metadata, "pipe")
}

// Probe reads the first audio stream's properties with ffprobe
func (d *Decoder) Probe(ctx context.Context, filename string) (*AudioMetadata, error) {
	output, err := d.run(ctx, d.config.FFprobePath, probeArgs(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

func (d *Decoder) probeBytes(ctx context.Context, data []byte) (*AudioMetadata, error) {
	output, err := d.run(ctx, d.config.FFprobePath, probeArgs("pipe:0"), data)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

// run executes a binary under the configured timeout and returns stdout
func (d *Decoder) run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	d.logger.Debug("Running command", logging.Fields{
		"function": "run",
		"binary":   binary,
		"args":     strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(string(exitError.Stderr)))
		}
		return nil, err
	}
	return output, nil
}

func probeArgs(input string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		input,
	}
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// Missing numeric fields are left at zero
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the output arguments; the caller prepends the input
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-f", "f64le",
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	filters := make([]string, 0, 2)
	if metadata != nil && metadata.SampleRate != d.config.TargetSampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if d.config.EnableNormalization {
		filters = append(filters, fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange))
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error", "pipe:1")
}

// processFFmpegOutput wraps the raw ffmpeg output as AudioData
func (d *Decoder) processFFmpegOutput(output []byte, metadata *AudioMetadata, source string) (*AudioData, error) {
	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	frames := len(samples) / d.config.TargetChannels
	decoded := &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   d.config.TargetChannels,
		Duration:   durationOf(frames, d.config.TargetSampleRate),
		Source:     source,
		Codec:      metadata.Codec,
	}

	d.logger.Debug("FFmpeg decode completed", logging.Fields{
		"function":        "processFFmpegOutput",
		"source":          source,
		"output_samples":  len(samples),
		"output_duration": decoded.Duration.Seconds(),
	})

	return decoded, nil
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a
// trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	if sampleCount == 0 {
		return nil
	}

	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// CheckAvailability runs "-version" on ffmpeg and ffprobe
func (d *Decoder) CheckAvailability(ctx context.Context) error {
	for _, binary := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if _, err := d.run(ctx, binary, []string{"-version"}, nil); err != nil {
			return fmt.Errorf("%s not available: %w", binary, err)
		}
	}
	return nil
}
