package staircase

import (
	"fmt"
	"log"
	"math"
)

// #region staircase-struct
// Staircase is an adaptive up-down procedure over a LevelGrid. It is not safe
// for concurrent use; interleaved tracks each need their own instance.
type Staircase struct {
	cfg            Config
	grid           LevelGrid
	requestedStart float64
	state          State
	sinks          []Sink
}

// #endregion staircase-struct

// #region options
// Option customises a Staircase at construction.
type Option func(*options)

type options struct {
	sinks  []Sink
	logger *log.Logger
}

// WithSink attaches an event observer. May be given more than once.
func WithSink(s Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithLogger sets the logger used when Config.Verbose is true.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// #endregion options

// #region validate
// Validate reports the first problem with c, wrapped in ErrInvalidConfiguration.
func (c Config) Validate() error {
	if _, err := NewLevelGrid(c.Levels); err != nil {
		return err
	}
	switch {
	case !(c.InitStepSize > 0) || math.IsInf(c.InitStepSize, 0):
		return fmt.Errorf("%w: init step size must be positive, got %g", ErrInvalidConfiguration, c.InitStepSize)
	case !(c.StepSize > 0) || math.IsInf(c.StepSize, 0):
		return fmt.Errorf("%w: step size must be positive, got %g", ErrInvalidConfiguration, c.StepSize)
	case c.RightRule <= 0:
		return fmt.Errorf("%w: right rule must be positive, got %d", ErrInvalidConfiguration, c.RightRule)
	case c.WrongRule <= 0:
		return fmt.Errorf("%w: wrong rule must be positive, got %d", ErrInvalidConfiguration, c.WrongRule)
	case c.MaxTrials <= 0:
		return fmt.Errorf("%w: max trials must be positive, got %d", ErrInvalidConfiguration, c.MaxTrials)
	case c.MaxReversals <= 0:
		return fmt.Errorf("%w: max reversals must be positive, got %d", ErrInvalidConfiguration, c.MaxReversals)
	case !(c.MaxCeilingIncrements > 0):
		return fmt.Errorf("%w: max ceiling increments must be positive or +Inf, got %g", ErrInvalidConfiguration, c.MaxCeilingIncrements)
	case math.IsNaN(c.StartLevel):
		return fmt.Errorf("%w: start level is NaN", ErrInvalidConfiguration)
	}
	if _, err := ParseCeilingBehaviour(string(c.CeilingBehaviour)); err != nil {
		return err
	}
	return nil
}

// #endregion validate

// #region constructor
// New validates cfg and returns a staircase positioned at the grid level
// nearest cfg.StartLevel.
func New(cfg Config, opts ...Option) (*Staircase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewLevelGrid(cfg.Levels)
	if err != nil {
		return nil, err
	}

	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	sinks := o.sinks
	if cfg.Verbose {
		sinks = append(sinks, logSink{logger: o.logger})
	}

	cfg.Levels = grid.Levels()
	start, _ := grid.Snap(cfg.StartLevel)
	s := &Staircase{
		cfg:            cfg,
		grid:           grid,
		requestedStart: cfg.StartLevel,
		sinks:          sinks,
		state: State{
			CurLevel: start,
			NTrials:  make([]int, grid.Len()),
			NCorrect: make([]int, grid.Len()),
		},
	}
	s.emit(Event{Kind: EventInitialized, Level: start})
	return s, nil
}

// #endregion constructor

// #region record-response
// RecordResponse applies one trial outcome. It is the only method that
// changes the staircase state. An ErrInvariantViolation leaves the state
// exactly as it was.
func (s *Staircase) RecordResponse(correct bool) error {
	st := &s.state
	right, wrong := st.CurRight, st.CurWrong
	if correct {
		right++
	} else {
		wrong++
	}
	if err := s.ruleConflict(right, wrong, st.Responses+1); err != nil {
		return err
	}
	st.Responses++

	_, idx := s.grid.Snap(st.CurLevel)
	st.NTrials[idx]++
	if correct {
		st.NCorrect[idx]++
	}
	if st.RevCount > 0 {
		st.TrialCount++
		s.emit(Event{Kind: EventTrialCounted, Response: st.Responses, Level: st.CurLevel,
			TrialCount: st.TrialCount, RevCount: st.RevCount})
	}

	st.JustReversed = false
	st.CurRight, st.CurWrong = right, wrong
	s.emit(Event{Kind: EventResponse, Response: st.Responses, Correct: correct, Level: st.CurLevel,
		CurRight: st.CurRight, CurWrong: st.CurWrong, TrialCount: st.TrialCount, RevCount: st.RevCount})

	s.checkRules()
	return nil
}

// #endregion record-response

// #region accessors

// CurLevel is the intensity to present on the next trial.
func (s *Staircase) CurLevel() float64 { return s.state.CurLevel }

// CurIndex is the grid index nearest CurLevel.
func (s *Staircase) CurIndex() int {
	_, idx := s.grid.Snap(s.state.CurLevel)
	return idx
}

func (s *Staircase) MinLevel() float64      { return s.grid.Min() }
func (s *Staircase) MaxLevel() float64      { return s.grid.Max() }
func (s *Staircase) Levels() []float64      { return s.grid.Levels() }
func (s *Staircase) Direction() Direction   { return s.state.Direction }
func (s *Staircase) TrialCount() int        { return s.state.TrialCount }
func (s *Staircase) ReversalCount() int     { return s.state.RevCount }
func (s *Staircase) CeilingIncrements() int { return s.state.CeilingIncrements }
func (s *Staircase) JustReversed() bool     { return s.state.JustReversed }
func (s *Staircase) NTrials() []int         { return append([]int(nil), s.state.NTrials...) }
func (s *Staircase) NCorrect() []int        { return append([]int(nil), s.state.NCorrect...) }
func (s *Staircase) Reversals() []float64   { return append([]float64(nil), s.state.Reversals...) }
func (s *Staircase) ReversalDirections() []Direction {
	return append([]Direction(nil), s.state.ReversalDirections...)
}

// Config returns the validated configuration with its own copy of the levels.
func (s *Staircase) Config() Config {
	c := s.cfg
	c.Levels = s.grid.Levels()
	return c
}

// StepSize is the step the next level change would use.
func (s *Staircase) StepSize() float64 {
	if s.state.RevCount == 0 {
		return s.cfg.InitStepSize
	}
	return s.cfg.StepSize
}

// Snapshot returns a deep copy of the current state.
func (s *Staircase) Snapshot() State { return s.state.clone() }

// #endregion accessors

func (s *Staircase) emit(e Event) {
	for _, sink := range s.sinks {
		sink.Emit(e)
	}
}
