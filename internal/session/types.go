package session

import (
	"context"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region responder
// Responder produces the outcome of one trial presented at level. Each track
// needs its own Responder; implementations need not be safe for concurrent use.
type Responder interface {
	Respond(ctx context.Context, level float64) (bool, error)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, level float64) (bool, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, level float64) (bool, error) {
	return f(ctx, level)
}

// #endregion responder

// #region track
// Track is one staircase to run to completion.
type Track struct {
	Name      string
	Config    staircase.Config
	Responder Responder
}

// #endregion track

// #region result
// FinishResponseCap is stored alongside the staircase's own finish reasons
// when the runner stopped a track at its response cap.
const FinishResponseCap = "response_cap"

// Result summarises one completed (or interrupted) track.
type Result struct {
	SessionID      string
	Track          string
	Responses      int
	Threshold      float64
	ThresholdError float64
	FinishReasons  []staircase.FinishReason
	Capped         bool // stopped by the runner's response cap, not the staircase
	Levels         []float64
	Final          staircase.State
}

// Finished reports whether the staircase itself signalled completion.
func (r Result) Finished() bool {
	return len(r.FinishReasons) > 0
}

// #endregion result
