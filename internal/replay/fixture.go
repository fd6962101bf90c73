package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description       string                `json:"description"`
	Config            staircase.Config      `json:"config"`
	Responses         []bool                `json:"responses"`
	ExpectedSteps     []FixtureExpectedStep `json:"expected_steps"`
	ExpectedThreshold *float64              `json:"expected_threshold,omitempty"`
}

// FixtureExpectedStep is the expected state after one response.
type FixtureExpectedStep struct {
	Response   int     `json:"response"`
	Action     string  `json:"action,omitempty"` // empty: not checked
	Level      float64 `json:"level"`
	RevCount   int     `json:"rev_count"`
	TrialCount int     `json:"trial_count"`
}

// Divergence is one mismatch between a fixture and a replay.
type Divergence struct {
	Response int
	Field    string
	Expected string
	Got      string
}

func (d Divergence) String() string {
	return fmt.Sprintf("response %d: %s expected %s, got %s", d.Response, d.Field, d.Expected, d.Got)
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToReplayConfig converts a fixture to a replay run with invariant checks on.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	return ReplayConfig{Staircase: f.Config, CheckInvariants: true}
}

// #endregion fixture-loader

// #region compare

// ExpectedFromSteps turns a replay into fixture expectations.
func ExpectedFromSteps(steps []Step) []FixtureExpectedStep {
	out := make([]FixtureExpectedStep, len(steps))
	for i, s := range steps {
		out[i] = FixtureExpectedStep{
			Response:   s.Response,
			Action:     s.Action,
			Level:      s.LevelAfter,
			RevCount:   s.RevCount,
			TrialCount: s.TrialCount,
		}
	}
	return out
}

// Compare lists every field where steps diverge from expected. A length
// mismatch is reported once under the "steps" field.
func Compare(expected []FixtureExpectedStep, steps []Step) []Divergence {
	var out []Divergence
	n := min(len(expected), len(steps))
	for i := 0; i < n; i++ {
		e, s := expected[i], steps[i]
		if e.Action != "" && e.Action != s.Action {
			out = append(out, Divergence{s.Response, "action", e.Action, s.Action})
		}
		if math.Abs(e.Level-s.LevelAfter) > 1e-9 {
			out = append(out, Divergence{s.Response, "level", fmt.Sprint(e.Level), fmt.Sprint(s.LevelAfter)})
		}
		if e.RevCount != s.RevCount {
			out = append(out, Divergence{s.Response, "rev_count", fmt.Sprint(e.RevCount), fmt.Sprint(s.RevCount)})
		}
		if e.TrialCount != s.TrialCount {
			out = append(out, Divergence{s.Response, "trial_count", fmt.Sprint(e.TrialCount), fmt.Sprint(s.TrialCount)})
		}
	}
	if len(expected) != len(steps) {
		out = append(out, Divergence{n + 1, "steps", fmt.Sprint(len(expected)), fmt.Sprint(len(steps))})
	}
	return out
}

// #endregion compare
