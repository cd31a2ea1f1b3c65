package domain

// GroupedExperimentResult holds every result sharing one input identity,
// plus the group-level evaluator outputs computed once per group (a single
// collective scoring call, not a per-member reduction). The result slice is
// shared with the flat run output, not copied.
type GroupedExperimentResult struct {
	// GroupKey is the canonical input identity (InputData.Key).
	GroupKey string `json:"group_key" validate:"required"`

	// ExperimentResults are the members in first-seen order.
	ExperimentResults []*ExperimentResult `json:"experiment_results"`

	// EvaluatorOutputs are the group-level scores for the full member list.
	EvaluatorOutputs []EvaluatorOutput `json:"evaluator_outputs,omitempty"`
}

// CombinationAggregatedMetrics holds every result sharing one combination
// identity together with the reductions computed over that bucket.
type CombinationAggregatedMetrics struct {
	// ComboKey is the canonical combination identity (Combination.Key).
	ComboKey string `json:"combo_key" validate:"required"`

	// ExperimentResults are the bucket members in first-seen order.
	ExperimentResults []*ExperimentResult `json:"experiment_results"`

	// AggregatedMetrics maps evaluator name to the metrics computed for it.
	AggregatedMetrics map[string][]Metric `json:"aggregated_metrics"`

	// AverageTokenUsage is the arithmetic mean token usage over the bucket,
	// zero for an empty bucket.
	AverageTokenUsage float64 `json:"average_token_usage"`

	// AverageLatency is the arithmetic mean latency in seconds over the
	// bucket, zero for an empty bucket.
	AverageLatency float64 `json:"average_latency"`
}

// Experiment is the terminal report: both groupings over the same underlying
// result list, in first-seen order. It is immutable once assembled; no
// cross-validation is performed between the two views.
type Experiment struct {
	GroupExperimentResults       []GroupedExperimentResult      `json:"group_experiment_results"`
	CombinationAggregatedMetrics []CombinationAggregatedMetrics `json:"combination_aggregated_metrics"`
}

// ResultCount returns the number of underlying results, counted through the
// input grouping.
func (e *Experiment) ResultCount() int {
	var n int
	for _, group := range e.GroupExperimentResults {
		n += len(group.ExperimentResults)
	}
	return n
}
