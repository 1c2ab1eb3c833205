package analysis

import (
	"fmt"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
)

// Buffer limits that produce warnings rather than errors
const (
	MinRecommendedSeconds    = 0.1
	MaxRecommendedSeconds    = 300.0
	MinRecommendedSampleRate = 8000
)

// ValidationReport lists why a buffer cannot be analyzed (Errors) or may
// analyze poorly (Warnings)
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Duration   float64  `json:"duration"`
	SampleRate int      `json:"sample_rate"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

// ValidateBuffer checks buf before analysis
func ValidateBuffer(buf common.SampleBuffer) ValidationReport {
	report := ValidationReport{
		Duration:   buf.Seconds(),
		SampleRate: buf.SampleRate,
		Errors:     make([]string, 0),
		Warnings:   make([]string, 0),
	}

	if buf.Len() == 0 {
		report.Errors = append(report.Errors, "buffer is empty")
	}
	if buf.SampleRate <= 0 {
		report.Errors = append(report.Errors, fmt.Sprintf("sample rate must be positive, got %d", buf.SampleRate))
	}

	if len(report.Errors) == 0 {
		if report.Duration < MinRecommendedSeconds {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("audio is %.3fs long, shorter than %.1fs may not analyze reliably", report.Duration, MinRecommendedSeconds))
		}
		if report.Duration > MaxRecommendedSeconds {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("audio is %.1fs long, analysis beyond %.0fs may be slow", report.Duration, MaxRecommendedSeconds))
		}
		if buf.SampleRate < MinRecommendedSampleRate {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("sample rate %d Hz is below %d Hz and limits accuracy", buf.SampleRate, MinRecommendedSampleRate))
		}
		if common.IsSilent(buf.Samples) {
			report.Warnings = append(report.Warnings, "audio is silent")
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}
