package staircase

import (
	"encoding/json"
	"math"
)

// configJSON is the wire form of Config. JSON has no infinity, so an
// unlimited ceiling cap is written as null and a missing cap reads as +Inf.
type configJSON struct {
	Levels               []float64 `json:"levels"`
	InitStepSize         float64   `json:"init_step_size"`
	StepSize             float64   `json:"step_size"`
	RightRule            int       `json:"right_rule"`
	WrongRule            int       `json:"wrong_rule"`
	MaxTrials            int       `json:"max_trials"`
	MaxReversals         int       `json:"max_revs"`
	StartLevel           float64   `json:"start_level"`
	Verbose              bool      `json:"verbose,omitempty"`
	CeilingBehaviour     string    `json:"ceiling_behaviour"`
	MaxCeilingIncrements *float64  `json:"max_ceiling_increments"`
}

// MarshalJSON implements json.Marshaler.
func (c Config) MarshalJSON() ([]byte, error) {
	row := configJSON{
		Levels:           c.Levels,
		InitStepSize:     c.InitStepSize,
		StepSize:         c.StepSize,
		RightRule:        c.RightRule,
		WrongRule:        c.WrongRule,
		MaxTrials:        c.MaxTrials,
		MaxReversals:     c.MaxReversals,
		StartLevel:       c.StartLevel,
		Verbose:          c.Verbose,
		CeilingBehaviour: string(c.CeilingBehaviour),
	}
	if !math.IsInf(c.MaxCeilingIncrements, 1) {
		v := c.MaxCeilingIncrements
		row.MaxCeilingIncrements = &v
	}
	return json.Marshal(row)
}

// UnmarshalJSON implements json.Unmarshaler. The result is not validated;
// New does that.
func (c *Config) UnmarshalJSON(b []byte) error {
	var row configJSON
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	*c = Config{
		Levels:               row.Levels,
		InitStepSize:         row.InitStepSize,
		StepSize:             row.StepSize,
		RightRule:            row.RightRule,
		WrongRule:            row.WrongRule,
		MaxTrials:            row.MaxTrials,
		MaxReversals:         row.MaxReversals,
		StartLevel:           row.StartLevel,
		Verbose:              row.Verbose,
		CeilingBehaviour:     CeilingBehaviour(row.CeilingBehaviour),
		MaxCeilingIncrements: math.Inf(1),
	}
	if row.MaxCeilingIncrements != nil {
		c.MaxCeilingIncrements = *row.MaxCeilingIncrements
	}
	return nil
}
