package store

import (
	"math"
	"time"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region session-record
// SessionRecord is one staircase run.
type SessionRecord struct {
	SessionID      string
	Track          string
	Config         staircase.Config
	CreatedAt      time.Time
	FinishedAt     time.Time // zero until FinishSession
	Threshold      float64   // NaN while undefined
	ThresholdError float64
	FinishReasons  []string
	Responses      int // trials stored for the session
}

// Finished reports whether FinishSession has been called.
func (r SessionRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// #endregion session-record

// #region trial-record
// TrialRecord is one response as it was applied.
type TrialRecord struct {
	SessionID  string
	Response   int     // 1-based response number within the session
	Level      float64 // level presented
	LevelIndex int
	Correct    bool
	Reversal   bool // this response triggered a reversal
	RevCount   int  // after the response
	TrialCount int  // after the response
	NextLevel  float64
	Direction  staircase.Direction
	CreatedAt  time.Time
}

// #endregion trial-record

// #region level-tally
// LevelTally is the per-level response count at the end of a session.
type LevelTally struct {
	LevelIndex int
	Level      float64
	NTrials    int
	NCorrect   int
}

// ProportionCorrect returns NCorrect/NTrials, or NaN for an untested level.
func (t LevelTally) ProportionCorrect() float64 {
	if t.NTrials == 0 {
		return math.NaN()
	}
	return float64(t.NCorrect) / float64(t.NTrials)
}

// TalliesFrom zips a staircase's grid with its counters.
func TalliesFrom(levels []float64, nTrials, nCorrect []int) []LevelTally {
	out := make([]LevelTally, len(levels))
	for i, l := range levels {
		out[i] = LevelTally{LevelIndex: i, Level: l, NTrials: nTrials[i], NCorrect: nCorrect[i]}
	}
	return out
}

// #endregion level-tally
