package temporal

import (
	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/logging"
)

const (
	trackingFrames     = 10  // Trailing envelope frames scanned per chunk
	trackingConfidence = 0.8 // Fixed confidence of a tracked beat
	bpmSmoothing       = 0.7 // Weight kept by the previous tempo
)

// BeatTrackingResult is the tracker state after one chunk
type BeatTrackingResult struct {
	CurrentBPM   float64 `json:"current_bpm"`
	Beats        []Beat  `json:"beats"`
	LastBeatTime float64 `json:"last_beat_time"` // Latest tracked beat, or the threshold used when none was found
	Confidence   float64 `json:"confidence"`
}

// TrackBeats looks for new beats at the end of a short chunk. Only local
// maxima in the trailing envelope frames later than lastBeatTime count; a
// negative lastBeatTime means one beat period before the end of the chunk.
// With two or more new beats the tempo moves 30% toward their spacing.
func (ra *RhythmAnalyzer) TrackBeats(samples []float64, sampleRate int, currentBPM, lastBeatTime float64, opts RhythmOptions) (*BeatTrackingResult, error) {
	const op = "temporal.TrackBeats"

	if err := common.ValidateSamples(op, samples, sampleRate); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if currentBPM <= 0 {
		return nil, common.NewInputError(op, "current bpm must be positive, got %g", currentBPM)
	}

	env, frameDuration, err := ra.energyEnvelope(op, samples, sampleRate)
	if err != nil {
		return nil, err
	}

	if lastBeatTime < 0 {
		lastBeatTime = float64(len(samples))/float64(sampleRate) - 60.0/currentBPM
	}

	result := &BeatTrackingResult{
		CurrentBPM:   currentBPM,
		Beats:        make([]Beat, 0),
		LastBeatTime: lastBeatTime,
	}

	for i := max(1, len(env)-trackingFrames); i < len(env)-1; i++ {
		if env[i] <= env[i-1] || env[i] <= env[i+1] {
			continue
		}

		beatTime := float64(i) * frameDuration
		if beatTime <= lastBeatTime {
			continue
		}

		result.Beats = append(result.Beats, Beat{
			Time:       beatTime,
			Strength:   env[i],
			Confidence: trackingConfidence,
		})
		result.LastBeatTime = beatTime
	}

	if avg, ok := meanInterval(result.Beats); ok && avg > 0 {
		result.CurrentBPM = bpmSmoothing*currentBPM + (1-bpmSmoothing)*60.0/avg
	}
	result.Confidence = beatConsistency(result.Beats, result.CurrentBPM)

	ra.logger.Debug("Beat tracking complete", logging.Fields{
		"function":     "TrackBeats",
		"beats":        len(result.Beats),
		"previous_bpm": currentBPM,
		"current_bpm":  result.CurrentBPM,
	})

	return result, nil
}
