// Package runner executes one logical input against every variation
// combination: it applies each combination to the experiment state, invokes
// the function under test with the input's content as named arguments, times
// the invocation on the monotonic clock, queries the usage meter, and scores
// the fresh result individually. Combinations run strictly in order by
// default; bounded concurrency with combination-local state snapshots is
// opt-in.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-crucible/internal/config"
	"github.com/ahrav/go-crucible/internal/domain"
	"github.com/ahrav/go-crucible/internal/evaluator"
	"github.com/ahrav/go-crucible/internal/registry"
	"github.com/ahrav/go-crucible/pkg/events"
)

// FailurePolicy selects how the runner treats user-function failures.
type FailurePolicy uint8

const (
	// FailFast propagates the first invocation error and aborts the run.
	FailFast FailurePolicy = iota

	// CaptureFailures records the error on the result and continues with the
	// remaining combinations. Failed results carry zero output and stay in
	// their group and bucket.
	CaptureFailures
)

// eventSource tags envelopes emitted by this package.
const eventSource = "combination-runner"

// EventCombinationCompleted is emitted after each combination finishes,
// whether or not the invocation succeeded.
const EventCombinationCompleted = "runner.combination_completed"

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds how many combinations of one input may run in
// parallel. Values below two keep the sequential path. Each concurrent
// combination works on its own state snapshot, and evaluator-output assembly
// is serialized after every invocation has completed.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithTimeout sets a per-invocation timeout. A timed-out invocation is
// recorded as a failed result rather than blocking the run, regardless of
// failure policy.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithFailurePolicy selects how invocation errors are handled.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithEventSink enables best-effort event emission.
func WithEventSink(sink events.EventSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithExperimentID sets the experiment identity stamped on emitted events.
func WithExperimentID(id string) Option {
	return func(r *Runner) { r.experimentID = id }
}

// Runner invokes the function under test once per combination and produces
// one ExperimentResult per (input, combination) pair.
type Runner struct {
	registry *registry.Registry
	logger   *slog.Logger
	sink     events.EventSink

	experimentID string
	runID        string

	concurrency int
	timeout     time.Duration
	policy      FailurePolicy
}

// New creates a runner resolving function references against reg.
func New(reg *registry.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: reg,
		logger:   slog.Default().With("component", "runner"),
		runID:    uuid.New().String(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSingleInput runs one input through every combination in the supplied
// ordered list and returns one result per combination, in combination order.
//
// For each combination the runner applies every (variation-point, value)
// pair to the state, invokes cfg.CustomFunction with the input's content as
// named arguments, measures wall-clock latency around the invocation only,
// queries the meter once immediately after the invocation returns, and, when
// an evaluator is supplied, scores the fresh result individually before
// moving on. Under FailFast the first invocation error aborts the run;
// evaluator errors always abort.
func (r *Runner) RunSingleInput(
	ctx context.Context,
	input domain.InputData,
	cfg *config.ExperimentConfig,
	combinations []domain.Combination,
	state *domain.ExperimentState,
	meter UsageMeter,
	eval evaluator.Evaluator,
) ([]*domain.ExperimentResult, error) {
	if cfg == nil || cfg.CustomFunction == "" {
		return nil, errors.New("runner: experiment config has no custom function")
	}
	if state == nil {
		state = domain.NewExperimentState()
	}

	if r.concurrency > 1 {
		return r.runConcurrent(ctx, input, cfg, combinations, state, meter, eval)
	}
	return r.runSequential(ctx, input, cfg, combinations, state, meter, eval)
}

func (r *Runner) runSequential(
	ctx context.Context,
	input domain.InputData,
	cfg *config.ExperimentConfig,
	combinations []domain.Combination,
	state *domain.ExperimentState,
	meter UsageMeter,
	eval evaluator.Evaluator,
) ([]*domain.ExperimentResult, error) {
	results := make([]*domain.ExperimentResult, 0, len(combinations))
	for _, combo := range combinations {
		applyCombination(state, combo)

		result, err := r.invoke(ctx, input, cfg.CustomFunction, combo, state, meter)
		if err != nil {
			return nil, err
		}
		if err := r.evaluateIndividually(ctx, result, eval); err != nil {
			return nil, err
		}

		r.emitCombinationCompleted(ctx, result)
		results = append(results, result)
	}
	return results, nil
}

func (r *Runner) runConcurrent(
	ctx context.Context,
	input domain.InputData,
	cfg *config.ExperimentConfig,
	combinations []domain.Combination,
	state *domain.ExperimentState,
	meter UsageMeter,
	eval evaluator.Evaluator,
) ([]*domain.ExperimentResult, error) {
	results := make([]*domain.ExperimentResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, combo := range combinations {
		i, combo := i, combo
		g.Go(func() error {
			// Combination-local snapshot: concurrent combinations must never
			// observe each other's variation assignments.
			local := state.Snapshot()
			applyCombination(local, combo)

			result, err := r.invoke(gctx, input, cfg.CustomFunction, combo, local, meter)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Evaluation and emission are serialized in combination order once every
	// invocation has completed, so downstream grouping sees the same order
	// as the sequential path.
	for _, result := range results {
		if err := r.evaluateIndividually(ctx, result, eval); err != nil {
			return nil, err
		}
		r.emitCombinationCompleted(ctx, result)
	}
	return results, nil
}

// invoke performs one timed, metered invocation and constructs the result.
// The timed window covers the call only; state mutation happens before entry.
func (r *Runner) invoke(
	ctx context.Context,
	input domain.InputData,
	functionRef string,
	combo domain.Combination,
	state *domain.ExperimentState,
	meter UsageMeter,
) (*domain.ExperimentResult, error) {
	// The function under test reaches its variation assignments through the
	// context, so concurrent snapshots stay combination-local.
	ctx = domain.StateIntoContext(ctx, state)

	start := time.Now()
	out, callErr := r.call(ctx, functionRef, input.Content)
	latency := time.Since(start).Seconds()

	var usage float64
	if meter != nil {
		usage = meter.CurrentUsage()
	}

	result := &domain.ExperimentResult{
		ID:          uuid.New().String(),
		InputData:   input,
		Combination: combo,
		Latency:     latency,
		TokenUsage:  usage,
	}

	if callErr != nil {
		timedOut := errors.Is(callErr, context.DeadlineExceeded)
		if r.policy == FailFast && !timedOut {
			return nil, callErr
		}
		result.Failed = true
		result.Error = callErr.Error()
		r.logger.Warn("invocation failed",
			"function", functionRef,
			"combination", combo.Key(),
			"timed_out", timedOut,
			"error", callErr)
		return result, nil
	}

	result.RawOutput = out
	return result, nil
}

// call invokes the function reference, bounding it with the per-invocation
// timeout when one is configured. A function that ignores cancellation keeps
// its goroutine until it returns; the run itself moves on.
func (r *Runner) call(ctx context.Context, ref string, args map[string]domain.Value) (domain.Value, error) {
	if r.timeout <= 0 {
		return r.registry.Call(ctx, ref, args)
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type callOutcome struct {
		out domain.Value
		err error
	}
	done := make(chan callOutcome, 1)
	go func() {
		out, err := r.registry.Call(cctx, ref, args)
		done <- callOutcome{out: out, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.out, outcome.err
	case <-cctx.Done():
		return domain.Value{}, &registry.InvocationError{Ref: ref, Err: cctx.Err()}
	}
}

// evaluateIndividually scores a fresh result immediately after its
// invocation. Every successful result is evaluated; failed results carry no
// output to score.
func (r *Runner) evaluateIndividually(ctx context.Context, result *domain.ExperimentResult, eval evaluator.Evaluator) error {
	if eval == nil || !result.OK() {
		return nil
	}
	outputs, err := eval.EvaluateIndividual(ctx, result)
	if err != nil {
		return fmt.Errorf("evaluate result %s: %w", result.ID, err)
	}
	result.EvaluatorOutputs = append(result.EvaluatorOutputs, outputs...)
	return nil
}

// combinationCompletedPayload is the payload of EventCombinationCompleted.
type combinationCompletedPayload struct {
	ResultID       string  `json:"result_id"`
	InputKey       string  `json:"input_key"`
	ComboKey       string  `json:"combo_key"`
	LatencySeconds float64 `json:"latency_seconds"`
	TokenUsage     float64 `json:"token_usage"`
	Failed         bool    `json:"failed"`
}

func (r *Runner) emitCombinationCompleted(ctx context.Context, result *domain.ExperimentResult) {
	if r.sink == nil {
		return
	}
	envelope, err := events.NewEnvelope(EventCombinationCompleted, eventSource, r.experimentID, r.runID,
		combinationCompletedPayload{
			ResultID:       result.ID,
			InputKey:       result.InputData.Key(),
			ComboKey:       result.Combination.Key(),
			LatencySeconds: result.Latency,
			TokenUsage:     result.TokenUsage,
			Failed:         result.Failed,
		})
	if err != nil {
		r.logger.Warn("build combination event", "error", err)
		return
	}
	events.EmitSafe(ctx, r.sink, r.logger, envelope)
}

// applyCombination writes every variation assignment into the state before
// the invocation starts. Last writer wins when points share a name.
func applyCombination(state *domain.ExperimentState, combo domain.Combination) {
	for name, value := range combo {
		state.SetVariation(name, value)
	}
}
