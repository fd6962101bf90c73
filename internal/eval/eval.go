package eval

import (
	"fmt"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region constructor
// Checker validates that one RecordResponse call moved the state legally.
type Checker struct {
	config EvalConfig
}

// NewChecker creates a checker with the given configuration.
func NewChecker(config EvalConfig) *Checker {
	return &Checker{config: config}
}

// ConfigFor derives checker bounds from a staircase configuration. Only
// limiting staircases are guaranteed to stay inside the grid.
func ConfigFor(cfg staircase.Config) EvalConfig {
	grid, err := staircase.NewLevelGrid(cfg.Levels)
	if err != nil {
		return EvalConfig{}
	}
	return EvalConfig{
		Bounded:  cfg.CeilingBehaviour == staircase.Limiting,
		MinLevel: grid.Min(),
		MaxLevel: grid.Max(),
	}
}

// #endregion constructor

// #region run
// Run compares the state before and after a single response.
func (c *Checker) Run(prev, next staircase.State) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, format string, args ...any) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf(format, args...))
		}
	}

	// 1. Level bounds
	if c.config.Bounded {
		in := next.CurLevel >= c.config.MinLevel && next.CurLevel <= c.config.MaxLevel
		check("level_bounds", next.CurLevel, in,
			"level %g outside [%g, %g]", next.CurLevel, c.config.MinLevel, c.config.MaxLevel)
	}

	// 2. Exactly one response was tallied
	respDelta := next.Responses - prev.Responses
	check("response_delta", float64(respDelta), respDelta == 1, "response count moved by %d", respDelta)

	tallyDelta := sum(next.NTrials) - sum(prev.NTrials)
	check("tally_delta", float64(tallyDelta), tallyDelta == 1, "per-level trials moved by %d", tallyDelta)

	correctDelta := sum(next.NCorrect) - sum(prev.NCorrect)
	check("correct_delta", float64(correctDelta), correctDelta == 0 || correctDelta == 1,
		"per-level correct moved by %d", correctDelta)

	// 3. Reversal history
	revDelta := next.RevCount - prev.RevCount
	check("reversal_delta", float64(revDelta), revDelta == 0 || revDelta == 1, "reversal count moved by %d", revDelta)

	parallel := len(next.Reversals) == next.RevCount && len(next.ReversalDirections) == next.RevCount
	check("reversal_history", float64(len(next.Reversals)), parallel,
		"reversal history lengths %d/%d for count %d", len(next.Reversals), len(next.ReversalDirections), next.RevCount)

	// 4. Trial budget only counts after the first reversal
	wantTrial := 0
	if prev.RevCount > 0 {
		wantTrial = 1
	}
	trialDelta := next.TrialCount - prev.TrialCount
	check("trial_delta", float64(trialDelta), trialDelta == wantTrial,
		"trial count moved by %d, want %d", trialDelta, wantTrial)

	// 5. Ceiling counter is monotonic
	ceilDelta := next.CeilingIncrements - prev.CeilingIncrements
	check("ceiling_delta", float64(ceilDelta), ceilDelta == 0 || ceilDelta == 1,
		"ceiling increments moved by %d", ceilDelta)

	// 6. Counters reset whenever the level moved
	if next.CurLevel != prev.CurLevel {
		reset := next.CurRight == 0 && next.CurWrong == 0
		check("counter_reset", float64(next.CurRight+next.CurWrong), reset,
			"counters right=%d wrong=%d not reset after level change", next.CurRight, next.CurWrong)
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion run

func sum(xs []int) int {
	var n int
	for _, x := range xs {
		n += x
	}
	return n
}
