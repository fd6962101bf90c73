package staircase

import "fmt"

// #region check-rules
// ruleConflict reports both rules holding for the given counters. That cannot
// happen with positive rule counts, because only one counter moves per
// response and a satisfied rule always resets both; it is reported rather
// than resolved by picking a direction.
func (s *Staircase) ruleConflict(right, wrong, response int) error {
	if right >= s.cfg.RightRule && wrong >= s.cfg.WrongRule {
		return fmt.Errorf("%w: right=%d>=%d and wrong=%d>=%d on response %d",
			ErrInvariantViolation, right, s.cfg.RightRule, wrong, s.cfg.WrongRule, response)
	}
	return nil
}

// checkRules fires at most one level change per response.
func (s *Staircase) checkRules() {
	st := &s.state
	switch {
	case st.CurRight >= s.cfg.RightRule:
		s.changeLevel(DirectionDown)
	case st.CurWrong >= s.cfg.WrongRule:
		s.changeLevel(DirectionUp)
	}
}

// #endregion check-rules

// #region change-level
func (s *Staircase) changeLevel(dir Direction) {
	st := &s.state

	switch {
	case st.Direction == DirectionNone:
		// The first move establishes the direction; it is not a reversal.
		st.Direction = dir
	case st.Direction != dir:
		s.doReversal(dir)
	}

	step := s.StepSize()
	if dir == DirectionDown {
		st.CurLevel -= step
	} else {
		st.CurLevel += step
	}
	s.emit(Event{Kind: EventLevelChange, Response: st.Responses, Level: st.CurLevel, To: dir,
		TrialCount: st.TrialCount, RevCount: st.RevCount})

	s.applyBounds()

	st.CurRight = 0
	st.CurWrong = 0
}

// #endregion change-level

// #region bounds
// applyBounds handles a level that left [min, max]. Only the upper bound
// counts towards MaxCeilingIncrements.
func (s *Staircase) applyBounds() {
	st := &s.state
	reset := s.cfg.CeilingBehaviour == Resetting

	switch {
	case st.CurLevel > s.grid.Max():
		st.CeilingIncrements++
		st.CurLevel = s.boundTarget(s.grid.Max())
		s.emit(Event{Kind: EventCeilingExceeded, Response: st.Responses, Level: st.CurLevel, Reset: reset,
			CeilingIncrements: st.CeilingIncrements, TrialCount: st.TrialCount, RevCount: st.RevCount})
	case st.CurLevel < s.grid.Min():
		st.CurLevel = s.boundTarget(s.grid.Min())
		s.emit(Event{Kind: EventFloorExceeded, Response: st.Responses, Level: st.CurLevel, Reset: reset,
			CeilingIncrements: st.CeilingIncrements, TrialCount: st.TrialCount, RevCount: st.RevCount})
	}
}

func (s *Staircase) boundTarget(bound float64) float64 {
	if s.cfg.CeilingBehaviour == Resetting {
		level, _ := s.grid.Snap(s.requestedStart)
		return level
	}
	return bound
}

// #endregion bounds
