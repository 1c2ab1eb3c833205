package windowing

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/mjibson/go-dsp/window"
)

// Type names a window function
type Type string

const (
	Rectangular Type = "rectangular"
	Hann        Type = "hann"
	Hamming     Type = "hamming"
	Blackman    Type = "blackman"
)

// Types lists every supported window in display order
var Types = []Type{Rectangular, Hann, Hamming, Blackman}

// ParseType resolves a window name case-insensitively.
// "hanning" is accepted as an alias for Hann.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangular", "rect", "none":
		return Rectangular, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	default:
		names := make([]string, len(Types))
		for i, t := range Types {
			names[i] = string(t)
		}
		return "", fmt.Errorf("unknown window type %q (%s)", name, strings.Join(names, ", "))
	}
}

// generator returns the go-dsp coefficient generator for t
func (t Type) generator() (func(int) []float64, error) {
	parsed, err := ParseType(string(t))
	if err != nil {
		return nil, err
	}

	switch parsed {
	case Rectangular:
		return window.Rectangular, nil
	case Hann:
		return window.Hann, nil
	case Hamming:
		return window.Hamming, nil
	default:
		return window.Blackman, nil
	}
}

// Coefficients generates the symmetric window w[0..n-1] of type t
func Coefficients(t Type, n int) ([]float64, error) {
	if n <= 0 {
		return nil, common.NewInputError("windowing.Coefficients", "window size must be positive, got %d", n)
	}

	gen, err := t.generator()
	if err != nil {
		return nil, err
	}

	return gen(n), nil
}

// Window holds precomputed coefficients for one type and size.
// A Window is read-only after construction and safe for concurrent use.
type Window struct {
	windowType   Type
	size         int
	coefficients []float64
}

// New creates a window of the given type and size
func New(t Type, size int) (*Window, error) {
	coefficients, err := Coefficients(t, size)
	if err != nil {
		return nil, err
	}

	parsed, _ := ParseType(string(t))

	return &Window{
		windowType:   parsed,
		size:         size,
		coefficients: coefficients,
	}, nil
}

// Apply returns a new size-N frame holding frame·w. Frames shorter than N
// are zero-padded, longer frames are truncated to N.
func (w *Window) Apply(frame []float64) []float64 {
	windowed := make([]float64, w.size)
	n := min(len(frame), w.size)

	for i := range n {
		windowed[i] = frame[i] * w.coefficients[i]
	}

	return windowed
}

// ApplyInto writes the windowed frame into dst, which must hold at least N values
func (w *Window) ApplyInto(dst, frame []float64) error {
	if len(dst) < w.size {
		return fmt.Errorf("destination length (%d) is shorter than window size (%d)", len(dst), w.size)
	}

	n := min(len(frame), w.size)
	for i := range n {
		dst[i] = frame[i] * w.coefficients[i]
	}
	for i := n; i < w.size; i++ {
		dst[i] = 0
	}

	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window length
func (w *Window) Size() int {
	return w.size
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.windowType
}

// CoherentGain returns the mean coefficient, the amplitude scaling a
// bin-centred sinusoid experiences under this window
func (w *Window) CoherentGain() float64 {
	return common.Mean(w.coefficients)
}
