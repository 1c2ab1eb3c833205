package tonal

import (
	"testing"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type NoteSegmenterTestSuite struct {
	suite.Suite
	segmenter  *NoteSegmenter
	sampleRate int
}

func (s *NoteSegmenterTestSuite) SetupSuite() {
	s.segmenter = NewNoteSegmenterWithLogger(quietLogger())
	s.sampleRate = 44100
}

func (s *NoteSegmenterTestSuite) TestSustainedSineIsOneNote() {
	x := sine(440, 0.5, s.sampleRate, s.sampleRate)

	notes, err := s.segmenter.DetectNotes(x, s.sampleRate, DefaultNoteOptions())
	s.Require().NoError(err)
	s.Require().Len(notes, 1)

	n := notes[0]
	s.Equal(69, n.MidiNote)
	s.Equal("A4", n.NoteName)
	s.InDelta(440.0, n.Frequency, 2.2)
	s.InDelta(0.0, n.StartTime, 1e-12)
	s.InDelta(1.0, n.Duration, 1e-12)
	s.InDelta(n.StartTime+n.Duration, n.EndTime, 1e-12)
	s.Greater(n.Confidence, 0.0)
	s.LessOrEqual(n.Confidence, 1.0)
	s.InDelta(0.318, n.Velocity, 0.01)
}

func (s *NoteSegmenterTestSuite) TestCandidatesSpanOneFrame() {
	x := sine(440, 0.5, s.sampleRate, 4096)

	candidates, err := s.segmenter.DetectCandidates(x, s.sampleRate, DefaultNoteOptions())
	s.Require().NoError(err)

	// frames start at 0, 256, ... while start+1024 < len
	s.Require().Len(candidates, 12)
	for i, c := range candidates {
		s.InDelta(float64(i*NoteHopSize)/float64(s.sampleRate), c.StartTime, 1e-12)
		s.InDelta(float64(NoteWindowSize)/float64(s.sampleRate), c.Duration, 1e-12)
		s.Equal(69, c.MidiNote)
	}
}

func (s *NoteSegmenterTestSuite) TestSilenceHasNoNotes() {
	notes, err := s.segmenter.DetectNotes(make([]float64, s.sampleRate), s.sampleRate, DefaultNoteOptions())
	s.Require().NoError(err)
	s.Empty(notes)
}

func (s *NoteSegmenterTestSuite) TestQuietSignalIsGated() {
	x := sine(440, 0.05, s.sampleRate, s.sampleRate)

	notes, err := s.segmenter.DetectNotes(x, s.sampleRate, DefaultNoteOptions())
	s.Require().NoError(err)
	s.Empty(notes)
}

func (s *NoteSegmenterTestSuite) TestTwoPitchesInSequence() {
	x := append(sine(440, 0.5, s.sampleRate, s.sampleRate/2), sine(660, 0.5, s.sampleRate, s.sampleRate/2)...)

	opts := DefaultNoteOptions()
	opts.PitchStabilityThreshold = 1

	notes, err := s.segmenter.DetectNotes(x, s.sampleRate, opts)
	s.Require().NoError(err)
	s.Require().GreaterOrEqual(len(notes), 2)
	s.Equal(69, notes[0].MidiNote)
	s.Equal(76, notes[len(notes)-1].MidiNote)
}

func (s *NoteSegmenterTestSuite) TestInvalidInput() {
	_, err := s.segmenter.DetectNotes(nil, s.sampleRate, DefaultNoteOptions())
	s.True(common.IsInvalidInput(err))

	opts := DefaultNoteOptions()
	opts.Quantization = "triplet"
	_, err = s.segmenter.DetectNotes([]float64{0.1}, s.sampleRate, opts)
	s.True(common.IsInvalidInput(err))
}

func TestNoteSegmenterSuite(t *testing.T) {
	suite.Run(t, new(NoteSegmenterTestSuite))
}

func TestMergeAdjacentIdenticalCandidates(t *testing.T) {
	a := note(60, 0.0, 0.1)
	a.Velocity, a.Confidence = 0.4, 0.6
	b := note(60, 0.1, 0.1)
	b.Velocity, b.Confidence = 0.6, 0.8

	merged := MergeNotes([]DetectedNote{a, b}, DefaultNoteOptions())

	require.Len(t, merged, 1)
	assert.InDelta(t, 0.2, merged[0].Duration, 1e-12)
	assert.InDelta(t, 0.0, merged[0].StartTime, 1e-12)
	assert.InDelta(t, 0.2, merged[0].EndTime, 1e-12)
	assert.InDelta(t, 0.5, merged[0].Velocity, 1e-12)
	assert.InDelta(t, 0.7, merged[0].Confidence, 1e-12)
}

func TestMergeRespectsPitchStability(t *testing.T) {
	candidates := []DetectedNote{note(60, 0, 0.1), note(61, 0.1, 0.1)}

	opts := DefaultNoteOptions()
	assert.Len(t, MergeNotes(candidates, opts), 2)

	opts.PitchStabilityThreshold = 1
	assert.Len(t, MergeNotes(candidates, opts), 1)
}

func TestMergeRespectsSeparation(t *testing.T) {
	candidates := []DetectedNote{note(60, 0, 0.1), note(60, 0.15, 0.1)}

	opts := DefaultNoteOptions()
	assert.Len(t, MergeNotes(candidates, opts), 2)

	opts.NoteSeparationThreshold = 0.06
	merged := MergeNotes(candidates, opts)
	require.Len(t, merged, 1)
	assert.InDelta(t, 0.25, merged[0].Duration, 1e-12)
}

func TestMergeDropsOutOfRangeDurations(t *testing.T) {
	candidates := []DetectedNote{note(60, 0, 0.01), note(64, 0.5, 0.2), note(67, 1.0, 6.0)}

	merged := MergeNotes(candidates, DefaultNoteOptions())
	require.Len(t, merged, 1)
	assert.Equal(t, 64, merged[0].MidiNote)

	assert.Empty(t, MergeNotes(nil, DefaultNoteOptions()))
}

func TestQuantizeNotes(t *testing.T) {
	notes := []DetectedNote{note(60, 0.26, 0.3), note(62, 1.01, 0.01)}

	quantized, err := QuantizeNotes(notes, QuantizeSixteenth)
	require.NoError(t, err)
	require.Len(t, quantized, 2)

	assert.InDelta(t, 0.25, quantized[0].StartTime, 1e-12)
	assert.InDelta(t, 0.25, quantized[0].Duration, 1e-12)
	assert.InDelta(t, 0.5, quantized[0].EndTime, 1e-12)

	// durations never collapse below one grid unit
	assert.InDelta(t, 1.0, quantized[1].StartTime, 1e-12)
	assert.InDelta(t, 0.125, quantized[1].Duration, 1e-12)

	// input is untouched
	assert.InDelta(t, 0.26, notes[0].StartTime, 1e-12)

	_, err = QuantizeNotes(notes, Quantization("dotted"))
	assert.True(t, common.IsInvalidInput(err))
}

func TestQuantizationUnits(t *testing.T) {
	want := map[Quantization]float64{
		QuantizeWhole:        2.0,
		QuantizeHalf:         1.0,
		QuantizeQuarter:      0.5,
		QuantizeEighth:       0.25,
		QuantizeSixteenth:    0.125,
		QuantizeThirtySecond: 0.0625,
		QuantizeSixtyFourth:  0.03125,
	}

	for q, unit := range want {
		got, err := q.Unit()
		require.NoError(t, err, q)
		assert.InDelta(t, unit, got, 1e-12, q)
	}
}
