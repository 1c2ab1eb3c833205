package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-score/algorithms/temporal"
)

// sineWAV encodes one second of a 16-bit mono 440 Hz tone
func sineWAV(t *testing.T) []byte {
	t.Helper()

	const sampleRate = 8000
	data := make([]int, sampleRate)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	out, err := os.Create(path)
	require.NoError(t, err)

	encoder := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	require.NoError(t, encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, encoder.Close())
	require.NoError(t, out.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func setDecoderPaths(t *testing.T, ffmpeg, ffprobe string) {
	t.Helper()
	viper.Set("ffmpeg", ffmpeg)
	viper.Set("ffprobe", ffprobe)
	t.Cleanup(func() {
		viper.Set("ffmpeg", "ffmpeg")
		viper.Set("ffprobe", "ffprobe")
	})
}

func TestLoadBufferFromStdin(t *testing.T) {
	setDecoderPaths(t, "ffmpeg", "ffprobe")

	buf, err := loadBuffer(context.Background(), stdinPath, bytes.NewReader(sineWAV(t)))
	require.NoError(t, err)

	assert.Equal(t, 8000, buf.SampleRate)
	assert.Equal(t, 8000, buf.Len())
	assert.InDelta(t, 0.0, buf.Samples[0], 1e-9)
}

func TestLoadBufferStdinUnavailable(t *testing.T) {
	setDecoderPaths(t, "ffmpeg", "ffprobe")

	_, err := loadBuffer(context.Background(), stdinPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin")
}

func TestNewDecoderValidatesConfig(t *testing.T) {
	setDecoderPaths(t, "ffmpeg", "")

	_, err := newDecoder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decoder config")

	_, err = loadBuffer(context.Background(), stdinPath, bytes.NewReader(sineWAV(t)))
	assert.Error(t, err)
}

func TestApplyBPMFlags(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("rhythm", pflag.ContinueOnError)
		flags.Float64("min-bpm", 60, "")
		flags.Float64("max-bpm", 240, "")
		return flags
	}

	opts := temporal.DefaultRhythmOptions()
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--min-bpm", "90"}))
	require.NoError(t, applyBPMFlags(flags, &opts))
	assert.Equal(t, 90.0, opts.MinBPM)
	assert.Equal(t, 240.0, opts.MaxBPM)

	opts = temporal.DefaultRhythmOptions()
	opts.MaxBPM = 200
	require.NoError(t, applyBPMFlags(newFlags(), &opts))
	assert.Equal(t, 200.0, opts.MaxBPM)

	opts = temporal.DefaultRhythmOptions()
	flags = newFlags()
	require.NoError(t, flags.Parse([]string{"--min-bpm", "300"}))
	assert.Error(t, applyBPMFlags(flags, &opts))

	undeclared := pflag.NewFlagSet("rhythm", pflag.ContinueOnError)
	undeclared.String("min-bpm", "", "")
	require.NoError(t, undeclared.Parse([]string{"--min-bpm", "fast"}))
	assert.Error(t, applyBPMFlags(undeclared, &opts))
}

func TestWriteOutputJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeOutput(&out, "json", temporal.TimeSignature{Numerator: 3, Denominator: 4}))
	assert.Contains(t, out.String(), `"numerator": 3`)
}

func TestWriteOutputYAMLUsesJSONNames(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeOutput(&out, "yaml", temporal.Beat{Time: 0.5, Strength: 1, Confidence: 0.8}))

	assert.Contains(t, out.String(), "time: 0.5")
	assert.Contains(t, out.String(), "confidence: 0.8")
}

func TestWriteOutputUnknownFormat(t *testing.T) {
	assert.Error(t, writeOutput(&bytes.Buffer{}, "xml", 1))
}
