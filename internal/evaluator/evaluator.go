// Package evaluator defines the contract between the experiment core and
// pluggable result evaluators. The core never implements scoring itself: it
// calls EvaluateIndividual once per result immediately after each invocation
// and EvaluateGroup once per input group with the full member list.
package evaluator

import (
	"context"

	"github.com/ahrav/go-crucible/internal/domain"
)

// Evaluator scores experiment results. Implementations are registered under
// short names in the capability registry and resolved by the harness at
// process start.
//
// Implementations must not retain or mutate the results they are handed;
// scores are communicated exclusively through the returned outputs.
type Evaluator interface {
	// EvaluateIndividual scores a single result. The returned outputs are
	// appended to the result's evaluator outputs in order.
	EvaluateIndividual(ctx context.Context, result *domain.ExperimentResult) ([]domain.EvaluatorOutput, error)

	// EvaluateGroup scores all results sharing one input identity in a single
	// collective call. The returned outputs become the group-level outputs;
	// they are not distributed back onto individual members.
	EvaluateGroup(ctx context.Context, results []*domain.ExperimentResult) ([]domain.EvaluatorOutput, error)
}
