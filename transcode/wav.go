package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// ErrUnsupportedWAV marks WAV files the native reader cannot decode
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

const wavFormatPCM = 1

// DecodeWAV reads an integer PCM WAV stream and scales it to [-1, 1].
// Channels stay interleaved.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("WAV file has no usable format chunk")
	}

	bitDepth := int(buf.SourceBitDepth)
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bitDepth)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		pcm := make([]float64, len(buf.Data))
		for i, v := range buf.Data {
			pcm[i] = float64(v-128) / scale
		}
		return wavAudio(pcm, buf.Format.SampleRate, buf.Format.NumChannels), nil
	}

	pcm := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float64(v) / scale
	}
	return wavAudio(pcm, buf.Format.SampleRate, buf.Format.NumChannels), nil
}

func wavAudio(pcm []float64, sampleRate, channels int) *AudioData {
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   durationOf(len(pcm)/channels, sampleRate),
		Codec:      "pcm",
	}
}

// IsWAV reports whether filename has a .wav or .wave extension
func IsWAV(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return true
	default:
		return false
	}
}

// Load decodes filename natively when it is a PCM WAV file and through
// ffmpeg otherwise. A nil decoder restricts Load to WAV input.
func Load(ctx context.Context, filename string, decoder *Decoder) (*AudioData, error) {
	if IsWAV(filename) {
		data, err := loadWAV(filename)
		if err == nil {
			return data, nil
		}
		if decoder == nil || !errors.Is(err, ErrUnsupportedWAV) {
			return nil, err
		}
	}

	if decoder == nil {
		return nil, fmt.Errorf("%s: only WAV input is supported without ffmpeg", filename)
	}
	return decoder.DecodeFile(ctx, filename)
}

// LoadReader decodes r natively when it holds a PCM WAV stream and through
// ffmpeg's stdin otherwise. A nil decoder restricts LoadReader to WAV input.
func LoadReader(ctx context.Context, r io.Reader, decoder *Decoder) (*AudioData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("audio data is empty")
	}

	if hasWAVHeader(raw) {
		data, err := DecodeWAV(bytes.NewReader(raw))
		if err == nil {
			data.Source = "pipe"
			return data, nil
		}
		if decoder == nil || !errors.Is(err, ErrUnsupportedWAV) {
			return nil, err
		}
	}

	if decoder == nil {
		return nil, fmt.Errorf("only WAV input is supported without ffmpeg")
	}
	return decoder.DecodeReader(ctx, bytes.NewReader(raw))
}

// hasWAVHeader checks for the RIFF/WAVE magic
func hasWAVHeader(raw []byte) bool {
	return len(raw) >= 12 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WAVE"
}

func loadWAV(filename string) (*AudioData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	data, err := DecodeWAV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	data.Source = filename
	return data, nil
}
