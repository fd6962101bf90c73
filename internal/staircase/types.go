package staircase

import (
	"fmt"
	"math"
)

// #region direction
// Direction is the sign of the most recent level change.
type Direction int

const (
	DirectionNone Direction = iota // no level change yet
	DirectionDown
	DirectionUp
)

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	case DirectionUp:
		return "up"
	default:
		return "none"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name written by MarshalText.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*d = DirectionNone
	case "down":
		*d = DirectionDown
	case "up":
		*d = DirectionUp
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// #endregion direction

// #region ceiling-behaviour
// CeilingBehaviour selects what happens when a move leaves the grid bounds.
type CeilingBehaviour string

const (
	// Limiting clamps the level to the violated bound.
	Limiting CeilingBehaviour = "limiting"
	// Resetting returns the level to the grid point nearest the requested start level.
	Resetting CeilingBehaviour = "resetting"
)

// ParseCeilingBehaviour converts a config string into a CeilingBehaviour.
// Unknown values are rejected rather than coerced.
func ParseCeilingBehaviour(s string) (CeilingBehaviour, error) {
	switch CeilingBehaviour(s) {
	case Limiting, Resetting:
		return CeilingBehaviour(s), nil
	}
	return "", fmt.Errorf("%w: unknown ceiling behaviour %q", ErrInvalidConfiguration, s)
}

// #endregion ceiling-behaviour

// #region config
// Config holds the fixed parameters of one staircase run.
type Config struct {
	Levels               []float64
	InitStepSize         float64 // step used until the first reversal
	StepSize             float64 // step used afterwards
	RightRule            int     // consecutive correct responses to step down
	WrongRule            int     // consecutive incorrect responses to step up
	MaxTrials            int     // post-reversal trials before finishing
	MaxReversals         int
	StartLevel           float64 // snapped to the nearest grid level
	Verbose              bool
	CeilingBehaviour     CeilingBehaviour
	MaxCeilingIncrements float64 // +Inf disables this termination path
}

// DefaultConfig returns a 2-down/2-up staircase over five unit-spaced levels.
func DefaultConfig() Config {
	return Config{
		Levels:               []float64{1, 2, 3, 4, 5},
		InitStepSize:         1,
		StepSize:             1,
		RightRule:            2,
		WrongRule:            2,
		MaxTrials:            100,
		MaxReversals:         10,
		StartLevel:           3,
		CeilingBehaviour:     Limiting,
		MaxCeilingIncrements: math.Inf(1),
	}
}

// #endregion config

// #region state
// State is a copy of everything the staircase tracks between responses.
// Snapshot returns one; it never aliases the live instance.
type State struct {
	CurLevel           float64
	Direction          Direction
	CurRight           int
	CurWrong           int
	TrialCount         int
	RevCount           int
	CeilingIncrements  int
	JustReversed       bool
	Responses          int // every response, before or after the first reversal
	Reversals          []float64
	ReversalDirections []Direction
	NTrials            []int
	NCorrect           []int
}

func (s State) clone() State {
	out := s
	out.Reversals = append([]float64(nil), s.Reversals...)
	out.ReversalDirections = append([]Direction(nil), s.ReversalDirections...)
	out.NTrials = append([]int(nil), s.NTrials...)
	out.NCorrect = append([]int(nil), s.NCorrect...)
	return out
}

// #endregion state
