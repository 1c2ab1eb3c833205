package filters

import (
	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// PreprocessOptions selects the conditioning applied before analysis
type PreprocessOptions struct {
	RemoveDC bool    `json:"remove_dc" mapstructure:"remove_dc"`
	DCCutoff float64 `json:"dc_cutoff" mapstructure:"dc_cutoff"` // Hz
}

// DefaultPreprocessOptions leaves samples untouched
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		RemoveDC: false,
		DCCutoff: 10.0,
	}
}

// Validate checks the cutoff when DC removal is on
func (o PreprocessOptions) Validate() error {
	if o.RemoveDC && o.DCCutoff <= 0 {
		return common.NewInputError("filters.PreprocessOptions", "dc cutoff must be positive, got %g", o.DCCutoff)
	}
	return nil
}

// Enabled reports whether Preprocess would change anything
func (o PreprocessOptions) Enabled() bool {
	return o.RemoveDC
}

// Preprocess returns buf conditioned per opts. The input is never modified;
// with nothing enabled the same buffer is returned.
func Preprocess(buf common.SampleBuffer, opts PreprocessOptions) common.SampleBuffer {
	if !opts.Enabled() {
		return buf
	}

	samples := buf.Samples
	if opts.RemoveDC {
		samples = NewDCBlocker(buf.SampleRate, opts.DCCutoff).ProcessBuffer(samples)
	}
	return common.NewSampleBuffer(samples, buf.SampleRate)
}
