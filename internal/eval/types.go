package eval

// #region eval-config
// EvalConfig holds thresholds for per-question validation.
type EvalConfig struct {
	MinDistinctAnswers int // non-scene answers must take at least this many values
}

// DefaultEvalConfig matches the generation gate.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinDistinctAnswers: 2,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float32
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of per-question validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
