package replay

import (
	"fmt"

	"github.com/hashtagcpt/psychophysics-parrot/internal/eval"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region types
// Step actions.
const (
	ActionHold        = "hold"         // no rule fired
	ActionLevelChange = "level_change" // moved without reversing
	ActionReversal    = "reversal"
)

// Step captures the outcome of replaying one response.
type Step struct {
	Response          int
	Correct           bool
	Action            string
	LevelBefore       float64
	LevelAfter        float64
	RevCount          int
	TrialCount        int
	CeilingIncrements int
	Finished          bool

	// Eval is nil when invariant checking is disabled.
	Eval *eval.EvalResult
}

// ReplayConfig bundles the staircase and checker settings for one run.
type ReplayConfig struct {
	Staircase       staircase.Config
	CheckInvariants bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps     int
	Holds          int
	LevelChanges   int
	Reversals      int
	Violations     int
	Unused         int // responses left over once the staircase finished
	Finished       bool
	FinishReasons  []staircase.FinishReason
	Threshold      float64
	ThresholdError float64
	FinalState     staircase.State
}

// #endregion types

// #region replay
// Replay feeds responses into a fresh staircase until they run out or the
// staircase finishes, the same way an experiment loop would. Runs entirely in memory.
func Replay(config ReplayConfig, responses []bool) ([]Step, *staircase.Staircase, error) {
	var moved bool
	sc, err := staircase.New(config.Staircase, staircase.WithSink(staircase.SinkFunc(func(e staircase.Event) {
		if e.Kind == staircase.EventLevelChange {
			moved = true
		}
	})))
	if err != nil {
		return nil, nil, fmt.Errorf("new staircase: %w", err)
	}

	var checker *eval.Checker
	if config.CheckInvariants {
		checker = eval.NewChecker(eval.ConfigFor(config.Staircase))
	}

	steps := make([]Step, 0, len(responses))
	for i, correct := range responses {
		if sc.IsFinished() {
			break
		}
		prev := sc.Snapshot()
		moved = false
		if err := sc.RecordResponse(correct); err != nil {
			return steps, sc, fmt.Errorf("response %d: %w", i+1, err)
		}

		step := Step{
			Response:          i + 1,
			Correct:           correct,
			Action:            ActionHold,
			LevelBefore:       prev.CurLevel,
			LevelAfter:        sc.CurLevel(),
			RevCount:          sc.ReversalCount(),
			TrialCount:        sc.TrialCount(),
			CeilingIncrements: sc.CeilingIncrements(),
			Finished:          sc.IsFinished(),
		}
		switch {
		case sc.JustReversed():
			step.Action = ActionReversal
		case moved:
			step.Action = ActionLevelChange
		}
		if checker != nil {
			result := checker.Run(prev, sc.Snapshot())
			step.Eval = &result
		}
		steps = append(steps, step)
	}
	return steps, sc, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(steps []Step, sc *staircase.Staircase, totalResponses int) ReplaySummary {
	s := ReplaySummary{
		TotalSteps:     len(steps),
		Unused:         totalResponses - len(steps),
		Finished:       sc.IsFinished(),
		FinishReasons:  sc.FinishReasons(),
		Threshold:      sc.ReversalThreshold(),
		ThresholdError: sc.ReversalError(),
		FinalState:     sc.Snapshot(),
	}
	for _, st := range steps {
		switch st.Action {
		case ActionHold:
			s.Holds++
		case ActionLevelChange:
			s.LevelChanges++
		case ActionReversal:
			s.Reversals++
		}
		if st.Eval != nil && !st.Eval.Passed {
			s.Violations++
		}
	}
	return s
}

// #endregion replay
