package eval

// #region eval-config
// EvalConfig holds the bounds the checker enforces.
type EvalConfig struct {
	Bounded  bool // enforce MinLevel <= level <= MaxLevel (limiting ceiling behaviour)
	MinLevel float64
	MaxLevel float64
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of checking one transition.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
