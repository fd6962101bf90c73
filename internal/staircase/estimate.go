package staircase

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinReversalsForEstimate is the reversal count from which the threshold is defined.
const MinReversalsForEstimate = 3

// #region do-reversal
func (s *Staircase) doReversal(dir Direction) {
	st := &s.state
	from := st.Direction
	st.RevCount++
	st.Reversals = append(st.Reversals, st.CurLevel)
	st.ReversalDirections = append(st.ReversalDirections, dir)
	st.Direction = dir
	st.JustReversed = true

	thresh, se := Estimate(st.Reversals)
	s.emit(Event{Kind: EventReversal, Response: st.Responses, Level: st.CurLevel, From: from, To: dir,
		TrialCount: st.TrialCount, RevCount: st.RevCount, Threshold: thresh, ThresholdError: se})
}

// #endregion do-reversal

// #region estimate
// Estimate returns the mean of reversals[1:] and its standard error (sample
// standard deviation over sqrt(n)). Both are NaN below MinReversalsForEstimate.
func Estimate(reversals []float64) (mean, stdErr float64) {
	if len(reversals) < MinReversalsForEstimate {
		return math.NaN(), math.NaN()
	}
	tail := reversals[1:]
	mean, sd := stat.MeanStdDev(tail, nil)
	return mean, sd / math.Sqrt(float64(len(tail)))
}

// ReversalThreshold is the running threshold estimate.
func (s *Staircase) ReversalThreshold() float64 {
	m, _ := Estimate(s.state.Reversals)
	return m
}

// ReversalError is the standard error of ReversalThreshold.
func (s *Staircase) ReversalError() float64 {
	_, se := Estimate(s.state.Reversals)
	return se
}

// #endregion estimate
