package spectral

import (
	"math"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// Direction selects the sign of the twiddle exponent
type Direction int

const (
	// Forward uses e^{-2πik/N}
	Forward Direction = iota
	// Inverse uses e^{+2πik/N} and halves every butterfly
	Inverse
)

// FFT is a recursive radix-2 Cooley-Tukey transform.
// Inputs of any length are zero-padded to the next power of two and are
// never modified.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	padded := make([]complex128, common.NextPowerOfTwo(len(x)))
	for i, v := range x {
		padded[i] = complex(v, 0)
	}

	return transform(padded, Forward)
}

// Transform runs the complex transform in the given direction
func (f *FFT) Transform(x []complex128, dir Direction) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	padded := make([]complex128, common.NextPowerOfTwo(len(x)))
	copy(padded, x)

	return transform(padded, dir)
}

// ComputeInverse computes the inverse FFT
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	return f.Transform(x, Inverse)
}

// ComputeInverseReal computes the inverse FFT and returns the real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := f.Transform(x, Inverse)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// transform requires len(x) to be a power of two
func transform(x []complex128, dir Direction) []complex128 {
	n := len(x)
	if n == 1 {
		return []complex128{x[0]}
	}

	half := n / 2
	even := make([]complex128, half)
	odd := make([]complex128, half)
	for i := range half {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}

	e := transform(even, dir)
	o := transform(odd, dir)

	sign := -1.0
	if dir == Inverse {
		sign = 1.0
	}

	out := make([]complex128, n)
	for k := range half {
		angle := sign * 2 * math.Pi * float64(k) / float64(n)
		t := complex(math.Cos(angle), math.Sin(angle)) * o[k]

		out[k] = e[k] + t
		out[k+half] = e[k] - t

		if dir == Inverse {
			out[k] /= 2
			out[k+half] /= 2
		}
	}

	return out
}

// Magnitude returns sqrt(re²+im²)
func Magnitude(c complex128) float64 {
	re, im := real(c), imag(c)
	return math.Sqrt(re*re + im*im)
}

// Magnitudes returns the magnitude of each bin
func Magnitudes(spectrum []complex128) []float64 {
	mags := make([]float64, len(spectrum))
	for i, c := range spectrum {
		mags[i] = Magnitude(c)
	}
	return mags
}
