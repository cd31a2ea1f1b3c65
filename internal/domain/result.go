package domain

// MethodCalculationMethod names the reduction applied when a bucket of
// evaluator outputs is collapsed into a Metric. It is a closed enumeration
// extended over time; aggregation skips methods it does not recognize so an
// older binary never crashes on a newer configuration.
type MethodCalculationMethod string

const (
	// MethodAverage is the arithmetic mean over a combination bucket.
	// The divisor is the bucket size, not the count of matching outputs:
	// a result that failed to declare the output contributes an implicit
	// zero. This represents "average over all attempts".
	MethodAverage MethodCalculationMethod = "AVERAGE"
)

// String returns the string representation of the calculation method.
func (m MethodCalculationMethod) String() string { return string(m) }

// MetricCalculator declares one reduction an evaluator wants applied to its
// outputs during per-combination aggregation.
type MetricCalculator struct {
	Method MethodCalculationMethod `json:"method" validate:"required"`
}

// EvaluatorOutput is one named score produced by an evaluator, either for an
// individual result or for a whole input group. Result may be numeric or
// categorical; only numeric outputs participate in metric aggregation.
type EvaluatorOutput struct {
	// Name identifies the evaluator / metric family that produced the output.
	Name string `json:"name" validate:"required,min=1"`

	// Result is the score itself.
	Result Value `json:"result"`

	// MetricCalculators declares which reductions aggregation should compute
	// for this output across a combination bucket. Order is preserved.
	MetricCalculators []MetricCalculator `json:"metric_calculators,omitempty" validate:"omitempty,dive"`
}

// Metric is a named scalar produced by aggregation: the calculation-method
// name paired with the reduced value. Metrics are created only by the
// aggregator, never by evaluators.
type Metric struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value"`
}

// ExperimentResult is one execution outcome: the input and combination that
// produced it, the raw output, and the per-invocation measurements. It is
// created once per (input, combination) pair by the runner and treated as
// immutable after evaluator outputs are attached.
type ExperimentResult struct {
	// ID uniquely identifies this result for event correlation.
	ID string `json:"id" validate:"required,uuid"`

	// InputData is the input this result was produced from.
	InputData InputData `json:"input_data"`

	// Combination is the variation assignment in effect during the invocation.
	Combination Combination `json:"combination"`

	// RawOutput is the value returned by the function under test.
	// Zero Value when the invocation failed.
	RawOutput Value `json:"raw_output"`

	// Latency is the wall-clock duration of the invocation in seconds,
	// measured on the monotonic clock around the call only. State mutation
	// is excluded from the timed window.
	Latency float64 `json:"latency" validate:"min=0"`

	// TokenUsage is the resource usage the meter attributed to this
	// invocation since its previous query point.
	TokenUsage float64 `json:"token_usage" validate:"min=0"`

	// EvaluatorOutputs holds the individual scores attached after the
	// invocation, in evaluator order.
	EvaluatorOutputs []EvaluatorOutput `json:"evaluator_outputs,omitempty" validate:"omitempty,dive"`

	// Failed marks a captured invocation failure (error or timeout) when the
	// runner operates under the capture policy. Failed results still belong
	// to their group and bucket so aggregation divisors stay honest.
	Failed bool `json:"failed,omitempty"`

	// Error carries the failure message when Failed is true.
	Error string `json:"error,omitempty"`
}

// OK reports whether the invocation completed without a captured failure.
func (r *ExperimentResult) OK() bool { return !r.Failed && r.Error == "" }

// Validate checks if the result meets structural requirements.
func (r *ExperimentResult) Validate() error { return validate.Struct(r) }

// OutputNamed returns the first evaluator output with the given name and
// whether one was found.
func (r *ExperimentResult) OutputNamed(name string) (EvaluatorOutput, bool) {
	for _, out := range r.EvaluatorOutputs {
		if out.Name == name {
			return out, true
		}
	}
	return EvaluatorOutput{}, false
}
