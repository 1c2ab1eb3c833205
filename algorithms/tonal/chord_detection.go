package tonal

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-score/algorithms/common"
	"github.com/RyanBlaney/sonido-score/logging"
)

// MaxChordNotesLimit caps subset enumeration. Enumeration grows as
// C(n, k) per window, so callers may not raise MaxChordNotes past it.
const MaxChordNotesLimit = 8

// ChordType is the quality of an identified chord
type ChordType string

const (
	ChordMajor      ChordType = "Major"
	ChordMinor      ChordType = "Minor"
	ChordDiminished ChordType = "Diminished"
	ChordAugmented  ChordType = "Augmented"
	ChordSus2       ChordType = "Sus2"
	ChordSus4       ChordType = "Sus4"
	ChordMajor7     ChordType = "Major7"
	ChordMinor7     ChordType = "Minor7"
	ChordDominant7  ChordType = "Dominant7"
)

// chordTemplate lists semitone offsets above the lowest note
type chordTemplate struct {
	chordType ChordType
	intervals []int
}

// chordDictionary is matched in order; the first match wins
var chordDictionary = []chordTemplate{
	{ChordMajor, []int{4, 7}},
	{ChordMinor, []int{3, 7}},
	{ChordDiminished, []int{3, 6}},
	{ChordAugmented, []int{4, 8}},
	{ChordSus2, []int{2, 7}},
	{ChordSus4, []int{5, 7}},
	{ChordMajor7, []int{4, 7, 11}},
	{ChordMinor7, []int{3, 7, 10}},
	{ChordDominant7, []int{4, 7, 10}},
}

// intervalTolerance is the per-interval slack in semitones
const intervalTolerance = 1

// ChordOptions configures chord identification
type ChordOptions struct {
	TimeWindow    float64 `json:"time_window" mapstructure:"time_window"` // Seconds that count as simultaneous
	MinChordNotes int     `json:"min_chord_notes" mapstructure:"min_chord_notes"`
	MaxChordNotes int     `json:"max_chord_notes" mapstructure:"max_chord_notes"`
}

// DefaultChordOptions groups onsets within 100 ms into chords of 2-6 notes
func DefaultChordOptions() ChordOptions {
	return ChordOptions{
		TimeWindow:    0.1,
		MinChordNotes: 2,
		MaxChordNotes: 6,
	}
}

// Validate checks the window and the subset size bounds
func (o ChordOptions) Validate() error {
	const op = "tonal.ChordOptions"

	if o.TimeWindow < 0 {
		return common.NewInputError(op, "time window must not be negative, got %g", o.TimeWindow)
	}
	if o.MinChordNotes < 2 {
		return common.NewInputError(op, "min chord notes must be at least 2, got %d", o.MinChordNotes)
	}
	if o.MaxChordNotes < o.MinChordNotes {
		return common.NewInputError(op, "max chord notes (%d) is below min chord notes (%d)", o.MaxChordNotes, o.MinChordNotes)
	}
	if o.MaxChordNotes > MaxChordNotesLimit {
		return common.NewInputError(op, "max chord notes (%d) exceeds the limit of %d", o.MaxChordNotes, MaxChordNotesLimit)
	}
	return nil
}

// DetectedChord is a subset of simultaneous notes matching a chord template
type DetectedChord struct {
	RootMidi   int       `json:"root_midi"`
	RootName   string    `json:"root_name"`
	ChordType  ChordType `json:"chord_type"`
	Notes      []int     `json:"notes"`
	StartTime  float64   `json:"start_time"`
	Duration   float64   `json:"duration"`
	Confidence float64   `json:"confidence"`
	Velocity   float64   `json:"velocity"`
}

// Name returns e.g. "C4 Major"
func (c DetectedChord) Name() string {
	return c.RootName + " " + string(c.ChordType)
}

// ChordIdentifier groups notes by onset and matches every note subset
// against the chord dictionary
type ChordIdentifier struct {
	logger logging.Logger
}

// NewChordIdentifier creates a chord identifier using the global logger
func NewChordIdentifier() *ChordIdentifier {
	return NewChordIdentifierWithLogger(logging.WithFields(logging.Fields{
		"component": "chord_identifier",
	}))
}

// NewChordIdentifierWithLogger creates a chord identifier reporting through logger
func NewChordIdentifierWithLogger(logger logging.Logger) *ChordIdentifier {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &ChordIdentifier{logger: logger}
}

// DetectChords returns every matching subset of every onset group, in
// group order and, within a group, in subset enumeration order
func (ci *ChordIdentifier) DetectChords(notes []DetectedNote, opts ChordOptions) ([]DetectedChord, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	chords := make([]DetectedChord, 0)
	if len(notes) < opts.MinChordNotes {
		return chords, nil
	}

	groups := GroupByOnset(notes, opts.TimeWindow)
	for _, group := range groups {
		if len(group) < opts.MinChordNotes {
			continue
		}

		maxSize := min(opts.MaxChordNotes, len(group))
		for size := opts.MinChordNotes; size <= maxSize; size++ {
			forEachCombination(len(group), size, func(indices []int) {
				subset := make([]DetectedNote, len(indices))
				for i, idx := range indices {
					subset[i] = group[idx]
				}
				if chord, ok := identifyChord(subset); ok {
					chords = append(chords, chord)
				}
			})
		}
	}

	ci.logger.Debug("Chord detection completed", logging.Fields{
		"function": "DetectChords",
		"notes":    len(notes),
		"groups":   len(groups),
		"chords":   len(chords),
	})

	return chords, nil
}

// GroupByOnset sorts notes by start time and splits them into groups whose
// onsets chain within timeWindow of each other
func GroupByOnset(notes []DetectedNote, timeWindow float64) [][]DetectedNote {
	groups := make([][]DetectedNote, 0)
	if len(notes) == 0 {
		return groups
	}

	sorted := make([]DetectedNote, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	current := []DetectedNote{sorted[0]}
	groupEnd := sorted[0].StartTime + timeWindow

	for _, note := range sorted[1:] {
		if note.StartTime <= groupEnd {
			current = append(current, note)
			groupEnd = math.Max(groupEnd, note.StartTime+timeWindow)
			continue
		}

		groups = append(groups, current)
		current = []DetectedNote{note}
		groupEnd = note.StartTime + timeWindow
	}
	groups = append(groups, current)

	return groups
}

// forEachCombination visits every size-k index subset of 0..n-1 in
// lexicographic order. The slice passed to visit is reused between calls.
func forEachCombination(n, k int, visit func([]int)) {
	current := make([]int, 0, k)

	var recurse func(start int)
	recurse = func(start int) {
		if len(current) == k {
			visit(current)
			return
		}
		for i := start; i <= n-(k-len(current)); i++ {
			current = append(current, i)
			recurse(i + 1)
			current = current[:len(current)-1]
		}
	}

	recurse(0)
}

func identifyChord(subset []DetectedNote) (DetectedChord, bool) {
	if len(subset) < 2 {
		return DetectedChord{}, false
	}

	sorted := make([]DetectedNote, len(subset))
	copy(sorted, subset)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MidiNote < sorted[j].MidiNote
	})

	intervals := make([]int, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals[i-1] = sorted[i].MidiNote - sorted[0].MidiNote
	}

	chordType, ok := IdentifyChordType(intervals)
	if !ok {
		return DetectedChord{}, false
	}

	startTime := math.Inf(1)
	endTime := math.Inf(-1)
	confidence, velocity := 0.0, 0.0
	midiNotes := make([]int, len(sorted))

	for i, n := range sorted {
		startTime = math.Min(startTime, n.StartTime)
		endTime = math.Max(endTime, n.StartTime+n.Duration)
		confidence += n.Confidence
		velocity += n.Velocity
		midiNotes[i] = n.MidiNote
	}

	count := float64(len(sorted))
	return DetectedChord{
		RootMidi:   sorted[0].MidiNote,
		RootName:   MidiNoteName(sorted[0].MidiNote),
		ChordType:  chordType,
		Notes:      midiNotes,
		StartTime:  startTime,
		Duration:   endTime - startTime,
		Confidence: confidence / count,
		Velocity:   velocity / count,
	}, true
}

// IdentifyChordType matches intervals above the lowest note against the
// dictionary, allowing one semitone of slack per interval
func IdentifyChordType(intervals []int) (ChordType, bool) {
	for _, tmpl := range chordDictionary {
		if intervalsMatch(intervals, tmpl.intervals) {
			return tmpl.chordType, true
		}
	}
	return "", false
}

func intervalsMatch(actual, expected []int) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		diff := actual[i] - expected[i]
		if diff > intervalTolerance || diff < -intervalTolerance {
			return false
		}
	}
	return true
}
