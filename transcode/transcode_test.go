package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, data []int, sampleRate, channels, bitDepth int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	encoder := wav.NewEncoder(out, sampleRate, bitDepth, channels, 1)
	require.NoError(t, encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, encoder.Close())

	return path
}

func TestMixToMono(t *testing.T) {
	mono, err := MixToMono([]float64{1, 0, 0.5, 0.5, -1, 1, 0.3}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0}, mono)

	same := []float64{0.1, 0.2}
	mono, err = MixToMono(same, 1)
	require.NoError(t, err)
	assert.Equal(t, same, mono)

	_, err = MixToMono(same, 0)
	assert.Error(t, err)
}

func TestLoadWAVStereo16Bit(t *testing.T) {
	// left/right frames: (16384, -16384), (32767, 32767), (0, -32768)
	path := writeWAV(t, []int{16384, -16384, 32767, 32767, 0, -32768}, 8000, 2, 16)

	data, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, 8000, data.SampleRate)
	assert.Equal(t, 2, data.Channels)
	assert.Equal(t, path, data.Source)
	require.Len(t, data.PCM, 6)
	assert.InDelta(t, 0.5, data.PCM[0], 1e-12)
	assert.InDelta(t, -1.0, data.PCM[5], 1e-12)
	assert.Equal(t, 3*time.Second/8000, data.Duration)

	buf, err := data.Mono()
	require.NoError(t, err)
	assert.Equal(t, 8000, buf.SampleRate)
	assert.InDeltaSlice(t, []float64{0, 32767.0 / 32768, -0.5}, buf.Samples, 1e-12)
}

func TestLoadWAVSine(t *testing.T) {
	const sampleRate = 22050
	data := make([]int, sampleRate/10)
	for i := range data {
		data[i] = int(math.Round(16000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)))
	}
	path := writeWAV(t, data, sampleRate, 1, 16)

	decoded, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	buf, err := decoded.Mono()
	require.NoError(t, err)
	require.Equal(t, len(data), buf.Len())
	for i, v := range data {
		assert.InDelta(t, float64(v)/32768, buf.Samples[i], 1e-12)
	}
}

func TestLoadRejectsNonWAVWithoutDecoder(t *testing.T) {
	_, err := Load(context.Background(), "clip.mp3", nil)
	assert.Error(t, err)
}

func TestDecodeWAVInvalid(t *testing.T) {
	_, err := DecodeWAV(strings.NewReader("not a riff file at all"))
	assert.Error(t, err)
}

func TestIsWAV(t *testing.T) {
	assert.True(t, IsWAV("a/b/Take1.WAV"))
	assert.True(t, IsWAV("x.wave"))
	assert.False(t, IsWAV("x.flac"))
	assert.False(t, IsWAV("wav"))
}

func TestBytesToFloat64(t *testing.T) {
	raw := make([]byte, 8*2+3)
	binary.LittleEndian.PutUint64(raw[0:], math.Float64bits(0.25))
	binary.LittleEndian.PutUint64(raw[8:], math.Float64bits(-1))

	assert.Equal(t, []float64{0.25, -1}, bytesToFloat64(raw))
	assert.Nil(t, bytesToFloat64(raw[:7]))
}

func TestParseFFprobeOutput(t *testing.T) {
	meta, err := parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3",
		"sample_rate":"48000","channels":2,"duration":"12.5","bit_rate":"320000","codec_long_name":"MP3"}]}`))
	require.NoError(t, err)
	assert.Equal(t, &AudioMetadata{
		SampleRate: 48000,
		Channels:   2,
		Codec:      "mp3",
		Duration:   12.5,
		Bitrate:    320000,
		Format:     "MP3",
	}, meta)

	_, err = parseFFprobeOutput([]byte(`{"streams":[]}`))
	assert.Error(t, err)

	_, err = parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"video","channels":2}]}`))
	assert.Error(t, err)

	_, err = parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","channels":0}]}`))
	assert.Error(t, err)

	_, err = parseFFprobeOutput([]byte(`nope`))
	assert.Error(t, err)
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	d := NewDecoderWithLogger(cfg, nil)

	args := d.buildFFmpegArgs(&AudioMetadata{SampleRate: 44100})
	assert.Equal(t, []string{"-f", "f64le", "-ac", "1", "-ar", "44100", "-v", "error", "pipe:1"}, args)

	cfg.EnableNormalization = true
	cfg.MaxDuration = 30 * time.Second
	args = d.buildFFmpegArgs(&AudioMetadata{SampleRate: 48000})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-af aresample=resampler=soxr:precision=20,loudnorm=I=-16.0:TP=-1.0:LRA=8.0")
	assert.Contains(t, joined, "-t 30.00")
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestDecoderConfigValidate(t *testing.T) {
	require.NoError(t, DefaultDecoderConfig().Validate())

	cfg := DefaultDecoderConfig()
	cfg.TargetChannels = 9
	assert.Error(t, cfg.Validate())

	cfg = DefaultDecoderConfig()
	cfg.ResampleQuality = "ultra"
	assert.Error(t, cfg.Validate())

	cfg = DefaultDecoderConfig()
	cfg.TargetSampleRate = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultDecoderConfig()
	cfg.FFprobePath = ""
	assert.Error(t, cfg.Validate())
}

func TestDecodeFileMissingBinary(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.FFprobePath = filepath.Join(t.TempDir(), "no-such-ffprobe")
	d := NewDecoderWithLogger(cfg, nil)

	_, err := d.DecodeFile(context.Background(), "clip.mp3")
	assert.Error(t, err)
	assert.Error(t, d.CheckAvailability(context.Background()))
}

func missingBinaryDecoder(t *testing.T) *Decoder {
	cfg := DefaultDecoderConfig()
	cfg.FFprobePath = filepath.Join(t.TempDir(), "no-such-ffprobe")
	cfg.FFmpegPath = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	return NewDecoderWithLogger(cfg, nil)
}

func TestLoadReaderWAV(t *testing.T) {
	path := writeWAV(t, []int{16384, -16384, 0, 32767}, 8000, 1, 16)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	data, err := LoadReader(context.Background(), bytes.NewReader(raw), nil)
	require.NoError(t, err)

	assert.Equal(t, 8000, data.SampleRate)
	assert.Equal(t, 1, data.Channels)
	assert.Equal(t, "pipe", data.Source)
	require.Len(t, data.PCM, 4)
	assert.InDelta(t, 0.5, data.PCM[0], 1e-9)
	assert.InDelta(t, -0.5, data.PCM[1], 1e-9)
}

func TestLoadReaderNonWAV(t *testing.T) {
	_, err := LoadReader(context.Background(), strings.NewReader("ID3 not a wav"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only WAV input")

	_, err = LoadReader(context.Background(), strings.NewReader("ID3 not a wav"), missingBinaryDecoder(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe failed")

	_, err = LoadReader(context.Background(), strings.NewReader(""), nil)
	assert.Error(t, err)
}

func TestDecodeReader(t *testing.T) {
	d := missingBinaryDecoder(t)

	_, err := d.DecodeReader(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	_, err = d.DecodeReader(context.Background(), strings.NewReader("fLaC"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe failed")
}
