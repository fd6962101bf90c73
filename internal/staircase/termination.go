package staircase

// #region finish-reason
// FinishReason names a termination condition.
type FinishReason string

const (
	FinishMaxReversals      FinishReason = "max_reversals"
	FinishMaxTrials         FinishReason = "max_trials"
	FinishCeilingIncrements FinishReason = "max_ceiling_increments"
)

// #endregion finish-reason

// #region is-finished
// FinishReasons lists every termination condition currently met, in a fixed order.
func (s *Staircase) FinishReasons() []FinishReason {
	var reasons []FinishReason
	st := s.state
	if st.RevCount >= s.cfg.MaxReversals {
		reasons = append(reasons, FinishMaxReversals)
	}
	if st.TrialCount >= s.cfg.MaxTrials {
		reasons = append(reasons, FinishMaxTrials)
	}
	if float64(st.CeilingIncrements) >= s.cfg.MaxCeilingIncrements {
		reasons = append(reasons, FinishCeilingIncrements)
	}
	return reasons
}

// IsFinished reports whether the run is complete. The caller decides whether
// to keep feeding responses; the staircase never refuses one.
func (s *Staircase) IsFinished() bool {
	return len(s.FinishReasons()) > 0
}

// #endregion is-finished
