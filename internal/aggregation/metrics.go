// Package aggregation reduces flat result lists into the final experiment
// report: named metrics per combination bucket, scalar usage and latency
// summaries, and the two order-preserving groupings (by input identity and
// by combination identity) the report is built from.
package aggregation

import (
	"log/slog"

	"github.com/ahrav/go-crucible/internal/domain"
)

// Aggregator computes named metrics and scalar summaries over buckets of
// experiment results. All methods are pure over their inputs; the logger is
// only used to surface skipped calculation methods.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger falls back to the
// process default.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger.With("component", "aggregator")}
}

// CalculateMetrics reduces one combination bucket into named metrics.
//
// The first result's evaluator outputs are the authoritative schema of which
// (name, method) pairs to compute; every result in the bucket is assumed to
// declare the same set. For each AVERAGE declaration the reduction sums the
// numeric result of every matching output across the bucket and divides by
// the bucket size, not by the count of matching outputs. A result missing a
// declared output (or carrying a categorical one) therefore contributes an
// implicit zero: the metric is the average over all attempts. Methods the
// aggregator does not recognize are skipped and logged, never fatal.
//
// An empty bucket yields an empty mapping without error.
func (a *Aggregator) CalculateMetrics(results []*domain.ExperimentResult) map[string][]domain.Metric {
	metrics := make(map[string][]domain.Metric)
	if len(results) == 0 {
		return metrics
	}

	for _, reference := range results[0].EvaluatorOutputs {
		for _, calculator := range reference.MetricCalculators {
			switch calculator.Method {
			case domain.MethodAverage:
				var total float64
				for _, result := range results {
					for _, output := range result.EvaluatorOutputs {
						if output.Name != reference.Name {
							continue
						}
						if n, ok := output.Result.AsNumber(); ok {
							total += n
						}
					}
				}
				metrics[reference.Name] = append(metrics[reference.Name], domain.Metric{
					Name:  domain.MethodAverage.String(),
					Value: total / float64(len(results)),
				})
			default:
				a.logger.Warn("skipping unsupported calculation method",
					"evaluator", reference.Name,
					"method", calculator.Method.String())
			}
		}
	}
	return metrics
}

// CalculateAverageTokenUsage returns the arithmetic mean token usage over
// the bucket, zero for an empty bucket.
func (a *Aggregator) CalculateAverageTokenUsage(results []*domain.ExperimentResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var total float64
	for _, result := range results {
		total += result.TokenUsage
	}
	return total / float64(len(results))
}

// CalculateAverageLatency returns the arithmetic mean latency in seconds
// over the bucket, zero for an empty bucket.
func (a *Aggregator) CalculateAverageLatency(results []*domain.ExperimentResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var total float64
	for _, result := range results {
		total += result.Latency
	}
	return total / float64(len(results))
}
