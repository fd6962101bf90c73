package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/hashtagcpt/psychophysics-parrot/internal/replay"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func (a *app) newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded response sequence through a fresh staircase",
		Long: `Replay feeds recorded responses into a new staircase, checks state
invariants after every response, and compares the result with what was
expected.

Fixture mode compares against the fixture's expected steps. DB mode
replays a stored session and compares against the stored trials.

Example:
  parrot replay --fixture testdata/two_down_two_up.json
  parrot replay --db parrot.db --session 6f1c...`,
		RunE: a.runReplay,
	}
	cmd.Flags().String("fixture", "", "path to fixture JSON (fixture mode)")
	cmd.Flags().String("db", "", "path to SQLite database (DB mode)")
	cmd.Flags().String("session", "", "session ID to replay (DB mode)")
	return cmd
}

func (a *app) runReplay(cmd *cobra.Command, args []string) error {
	fixturePath, _ := cmd.Flags().GetString("fixture")
	dbPath, _ := cmd.Flags().GetString("db")
	sessionID, _ := cmd.Flags().GetString("session")

	if (fixturePath == "") == (dbPath == "") {
		return fmt.Errorf("exactly one of --fixture or --db is required")
	}

	var f *replay.Fixture
	var err error
	if fixturePath != "" {
		f, err = replay.LoadFixture(fixturePath)
	} else {
		if sessionID == "" {
			return fmt.Errorf("--session is required with --db")
		}
		f, err = fixtureFromDB(dbPath, sessionID, false)
	}
	if err != nil {
		return err
	}

	steps, sc, err := replay.Replay(f.ToReplayConfig(), f.Responses)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printSteps(out, steps)

	sum := replay.Summarize(steps, sc, len(f.Responses))
	fmt.Fprintf(out, "\n%d steps: %d holds, %d level changes, %d reversals, %d unused responses\n",
		sum.TotalSteps, sum.Holds, sum.LevelChanges, sum.Reversals, sum.Unused)
	fmt.Fprintf(out, "Threshold: %.3f ± %.3f\n", sum.Threshold, sum.ThresholdError)

	divs := replay.Compare(f.ExpectedSteps, steps)
	if f.ExpectedThreshold != nil && math.Abs(sc.ReversalThreshold()-*f.ExpectedThreshold) > 1e-9 {
		divs = append(divs, replay.Divergence{
			Field:    "threshold",
			Expected: fmt.Sprintf("%g", *f.ExpectedThreshold),
			Got:      fmt.Sprintf("%g", sc.ReversalThreshold()),
		})
	}
	for _, d := range divs {
		fmt.Fprintf(out, "DIVERGENCE %s\n", d)
	}
	if sum.Violations > 0 || len(divs) > 0 {
		return fmt.Errorf("replay failed: %d invariant violations, %d divergences", sum.Violations, len(divs))
	}
	fmt.Fprintln(out, "OK")
	return nil
}

func printSteps(w io.Writer, steps []replay.Step) {
	fmt.Fprintf(w, "%5s  %-7s  %-12s  %8s  %8s  %4s  %6s  %s\n",
		"Resp", "Correct", "Action", "Before", "After", "Revs", "Trials", "Checks")
	for _, s := range steps {
		checks := "-"
		if s.Eval != nil {
			checks = "pass"
			if !s.Eval.Passed {
				checks = "FAIL " + s.Eval.Reason
			}
		}
		fmt.Fprintf(w, "%5d  %-7t  %-12s  %8g  %8g  %4d  %6d  %s\n",
			s.Response, s.Correct, s.Action, s.LevelBefore, s.LevelAfter, s.RevCount, s.TrialCount, checks)
	}
}

// fixtureFromDB rebuilds a fixture from a stored session: its config, the
// recorded responses, and the stored per-trial outcome as expectation.
// With fromReplay the expectations come from a fresh replay instead.
func fixtureFromDB(dbPath, sessionID string, fromReplay bool) (*replay.Fixture, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	rec, err := st.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	trials, err := st.ListTrials(sessionID)
	if err != nil {
		return nil, err
	}
	if len(trials) == 0 {
		return nil, fmt.Errorf("session %s has no trials", sessionID)
	}

	f := &replay.Fixture{
		Description: fmt.Sprintf("session %s track %s", rec.SessionID, rec.Track),
		Config:      rec.Config,
		Responses:   make([]bool, len(trials)),
	}
	for i, t := range trials {
		f.Responses[i] = t.Correct
	}

	if fromReplay {
		steps, sc, err := replay.Replay(f.ToReplayConfig(), f.Responses)
		if err != nil {
			return nil, err
		}
		f.ExpectedSteps = replay.ExpectedFromSteps(steps)
		if th := sc.ReversalThreshold(); !math.IsNaN(th) {
			f.ExpectedThreshold = &th
		}
		return f, nil
	}

	for _, t := range trials {
		// A clamp at a bound moves without changing the level, so a
		// non-reversal trial with an unchanged level is left unchecked.
		action := ""
		switch {
		case t.Reversal:
			action = replay.ActionReversal
		case t.NextLevel != t.Level:
			action = replay.ActionLevelChange
		}
		f.ExpectedSteps = append(f.ExpectedSteps, replay.FixtureExpectedStep{
			Response:   t.Response,
			Action:     action,
			Level:      t.NextLevel,
			RevCount:   t.RevCount,
			TrialCount: t.TrialCount,
		})
	}
	return f, nil
}
