package aggregation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-crucible/internal/domain"
	"github.com/ahrav/go-crucible/internal/evaluator"
	"github.com/ahrav/go-crucible/pkg/events"
)

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithEventSink enables best-effort emission of assembly events.
func WithEventSink(sink events.EventSink) AssemblerOption {
	return func(a *Assembler) { a.emitter = newEventEmitter(sink, a.logger) }
}

// WithLogger sets the assembler's logger.
func WithLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = logger }
}

// Assembler turns a flat result list into the final immutable Experiment:
// results grouped by input identity with group-level evaluator outputs, and
// results bucketed by combination identity with aggregated metrics.
type Assembler struct {
	aggregator *Aggregator
	logger     *slog.Logger
	emitter    *eventEmitter
}

// NewAssembler creates an assembler with its own aggregator.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{logger: slog.Default().With("component", "assembler")}
	for _, opt := range opts {
		opt(a)
	}
	a.aggregator = NewAggregator(a.logger)
	return a
}

// Assemble produces the experiment report from a flat result list.
//
// Results are grouped twice, independently, with the same stable rule:
// groups appear in first-seen order and members keep their original relative
// order. Each input group is scored once collectively by the evaluator; each
// combination bucket gets aggregated metrics plus average token usage and
// latency. Every result lands in exactly one group and exactly one bucket.
// The two views are not cross-validated against each other.
func (a *Assembler) Assemble(
	ctx context.Context,
	results []*domain.ExperimentResult,
	eval evaluator.Evaluator,
) (*domain.Experiment, error) {
	groups := groupBy(results, func(r *domain.ExperimentResult) string { return r.InputData.Key() })

	grouped := make([]domain.GroupedExperimentResult, 0, len(groups))
	for _, group := range groups {
		entry := domain.GroupedExperimentResult{
			GroupKey:          group.key,
			ExperimentResults: group.members,
		}
		if eval != nil {
			outputs, err := eval.EvaluateGroup(ctx, group.members)
			if err != nil {
				return nil, fmt.Errorf("evaluate group %q: %w", group.key, err)
			}
			entry.EvaluatorOutputs = outputs
		}
		grouped = append(grouped, entry)
	}

	buckets := groupBy(results, func(r *domain.ExperimentResult) string { return r.Combination.Key() })

	aggregated := make([]domain.CombinationAggregatedMetrics, 0, len(buckets))
	for _, bucket := range buckets {
		aggregated = append(aggregated, domain.CombinationAggregatedMetrics{
			ComboKey:          bucket.key,
			ExperimentResults: bucket.members,
			AggregatedMetrics: a.aggregator.CalculateMetrics(bucket.members),
			AverageTokenUsage: a.aggregator.CalculateAverageTokenUsage(bucket.members),
			AverageLatency:    a.aggregator.CalculateAverageLatency(bucket.members),
		})
	}

	experiment := &domain.Experiment{
		GroupExperimentResults:       grouped,
		CombinationAggregatedMetrics: aggregated,
	}
	a.emitter.emitExperimentAssembled(ctx, experiment, len(results))
	return experiment, nil
}

// resultGroup is one bucket of the stable grouping.
type resultGroup struct {
	key     string
	members []*domain.ExperimentResult
}

// groupBy partitions results by key, preserving first-seen order of groups
// and original relative order of members within each group.
func groupBy(results []*domain.ExperimentResult, key func(*domain.ExperimentResult) string) []resultGroup {
	index := make(map[string]int)
	groups := make([]resultGroup, 0)
	for _, result := range results {
		k := key(result)
		i, seen := index[k]
		if !seen {
			i = len(groups)
			index[k] = i
			groups = append(groups, resultGroup{key: k})
		}
		groups[i].members = append(groups[i].members, result)
	}
	return groups
}
