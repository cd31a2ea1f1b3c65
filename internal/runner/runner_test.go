package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-crucible/internal/config"
	"github.com/ahrav/go-crucible/internal/domain"
	"github.com/ahrav/go-crucible/internal/registry"
)

// individualRecordingEvaluator records per-result scoring calls and returns
// a fixed accuracy output for each.
type individualRecordingEvaluator struct {
	mu    sync.Mutex
	calls []*domain.ExperimentResult
}

func (e *individualRecordingEvaluator) EvaluateIndividual(_ context.Context, result *domain.ExperimentResult) ([]domain.EvaluatorOutput, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, result)
	return []domain.EvaluatorOutput{{
		Name:              "accuracy",
		Result:            domain.NumberValue(1),
		MetricCalculators: []domain.MetricCalculator{{Method: domain.MethodAverage}},
	}}, nil
}

func (e *individualRecordingEvaluator) EvaluateGroup(context.Context, []*domain.ExperimentResult) ([]domain.EvaluatorOutput, error) {
	return nil, nil
}

// testHarness wires a registry, meter, and invocation log for runner tests.
type testHarness struct {
	registry *registry.Registry
	meter    *DeltaMeter

	mu            sync.Mutex
	observedState []string
	invocations   int
}

// newTestHarness binds an "Answer" function that reads the active "prompt"
// variation from the context state, consumes tokens, and echoes the prompt.
func newTestHarness(t *testing.T, tokensPerCall float64) *testHarness {
	t.Helper()

	h := &testHarness{registry: registry.New(), meter: NewDeltaMeter()}
	h.registry.BindContainer("demo.functions", map[string]registry.Symbol{
		"Answer": registry.Callable(func(ctx context.Context, _ map[string]domain.Value) (domain.Value, error) {
			state := domain.StateFromContext(ctx)
			if state == nil {
				return domain.Value{}, errors.New("runner did not inject the active state")
			}

			prompt, err := state.GetVariation("prompt")
			if err != nil {
				return domain.Value{}, err
			}

			h.mu.Lock()
			h.observedState = append(h.observedState, prompt.Str)
			h.invocations++
			h.mu.Unlock()

			h.meter.Add(tokensPerCall)
			return prompt, nil
		}),
	})
	return h
}

func testConfig() *config.ExperimentConfig {
	return &config.ExperimentConfig{CustomFunction: "demo.functions.Answer"}
}

func testInput() domain.InputData {
	return domain.NewInputData(map[string]domain.Value{"question": domain.StringValue("q1")})
}

func TestRunSingleInput(t *testing.T) {
	combos := []domain.Combination{
		{"prompt": domain.StringValue("A")},
		{"prompt": domain.StringValue("B")},
	}

	t.Run("one input against two combinations", func(t *testing.T) {
		h := newTestHarness(t, 10)
		eval := &individualRecordingEvaluator{}
		r := New(h.registry)

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), h.meter, eval)
		require.NoError(t, err)
		require.Len(t, results, 2)

		// The user function ran exactly twice, seeing combination A's value
		// during the first call and combination B's during the second.
		assert.Equal(t, 2, h.invocations)
		assert.Equal(t, []string{"A", "B"}, h.observedState)

		for i, result := range results {
			assert.Equal(t, combos[i].Key(), result.Combination.Key())
			assert.True(t, result.OK())
			assert.GreaterOrEqual(t, result.Latency, 0.0)
			assert.InDelta(t, 10.0, result.TokenUsage, 1e-9, "each invocation meters independently")
			require.NoError(t, result.Validate())
		}
		assert.Equal(t, "A", results[0].RawOutput.Str)
		assert.Equal(t, "B", results[1].RawOutput.Str)
	})

	t.Run("fresh results are always evaluated individually", func(t *testing.T) {
		h := newTestHarness(t, 1)
		eval := &individualRecordingEvaluator{}
		r := New(h.registry)

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), h.meter, eval)
		require.NoError(t, err)

		require.Len(t, eval.calls, 2)
		for _, result := range results {
			require.Len(t, result.EvaluatorOutputs, 1)
			assert.Equal(t, "accuracy", result.EvaluatorOutputs[0].Name)
		}
	})

	t.Run("nil evaluator and nil meter are tolerated", func(t *testing.T) {
		h := newTestHarness(t, 5)
		r := New(h.registry)

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), nil, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Zero(t, results[0].TokenUsage)
		assert.Empty(t, results[0].EvaluatorOutputs)
	})

	t.Run("missing custom function", func(t *testing.T) {
		h := newTestHarness(t, 0)
		r := New(h.registry)

		_, err := r.RunSingleInput(context.Background(), testInput(), &config.ExperimentConfig{},
			combos, domain.NewExperimentState(), h.meter, nil)
		assert.Error(t, err)
	})

	t.Run("empty combination list yields no results", func(t *testing.T) {
		h := newTestHarness(t, 0)
		r := New(h.registry)

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			nil, domain.NewExperimentState(), h.meter, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Zero(t, h.invocations)
	})
}

func TestFailurePolicies(t *testing.T) {
	boom := errors.New("model exploded")

	newFailingRegistry := func(failOn string) *registry.Registry {
		reg := registry.New()
		reg.BindContainer("demo.functions", map[string]registry.Symbol{
			"Answer": registry.Callable(func(ctx context.Context, _ map[string]domain.Value) (domain.Value, error) {
				state := domain.StateFromContext(ctx)
				prompt, err := state.GetVariation("prompt")
				if err != nil {
					return domain.Value{}, err
				}
				if prompt.Str == failOn {
					return domain.Value{}, boom
				}
				return prompt, nil
			}),
		})
		return reg
	}

	combos := []domain.Combination{
		{"prompt": domain.StringValue("A")},
		{"prompt": domain.StringValue("B")},
		{"prompt": domain.StringValue("C")},
	}

	t.Run("fail fast propagates InvocationError and aborts", func(t *testing.T) {
		r := New(newFailingRegistry("B"))

		_, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), nil, nil)

		var invErr *registry.InvocationError
		require.ErrorAs(t, err, &invErr)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("capture policy records the failure and continues", func(t *testing.T) {
		eval := &individualRecordingEvaluator{}
		r := New(newFailingRegistry("B"), WithFailurePolicy(CaptureFailures))

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), nil, eval)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.True(t, results[0].OK())
		assert.False(t, results[1].OK())
		assert.Contains(t, results[1].Error, "model exploded")
		assert.True(t, results[2].OK())

		// Failed results carry no output to score.
		assert.Len(t, eval.calls, 2)
		assert.Empty(t, results[1].EvaluatorOutputs)
	})

	t.Run("timeouts are captured even under fail fast", func(t *testing.T) {
		reg := registry.New()
		reg.BindContainer("demo.functions", map[string]registry.Symbol{
			"Answer": registry.Callable(func(ctx context.Context, _ map[string]domain.Value) (domain.Value, error) {
				select {
				case <-ctx.Done():
					return domain.Value{}, ctx.Err()
				case <-time.After(5 * time.Second):
					return domain.StringValue("too late"), nil
				}
			}),
		})
		r := New(reg, WithTimeout(25*time.Millisecond))

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos[:1], domain.NewExperimentState(), nil, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].OK())
		assert.Contains(t, results[0].Error, "deadline")
	})
}

func TestConcurrentRun(t *testing.T) {
	combos := []domain.Combination{
		{"prompt": domain.StringValue("A")},
		{"prompt": domain.StringValue("B")},
		{"prompt": domain.StringValue("C")},
		{"prompt": domain.StringValue("D")},
	}

	t.Run("results come back in combination order with isolated state", func(t *testing.T) {
		h := newTestHarness(t, 2)
		r := New(h.registry, WithConcurrency(3))

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), h.meter, nil)
		require.NoError(t, err)
		require.Len(t, results, 4)

		// Each invocation observed exactly its own combination's assignment,
		// proving the snapshots never leaked between goroutines.
		for i, result := range results {
			assert.Equal(t, combos[i]["prompt"].Str, result.RawOutput.Str)
		}
		assert.Equal(t, 4, h.invocations)
	})

	t.Run("shared state is untouched by snapshots", func(t *testing.T) {
		h := newTestHarness(t, 0)
		r := New(h.registry, WithConcurrency(2))
		state := domain.NewExperimentState()

		_, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, state, h.meter, nil)
		require.NoError(t, err)

		_, err = state.GetVariation("prompt")
		assert.ErrorIs(t, err, domain.ErrVariationNotFound)
	})

	t.Run("individual evaluation is serialized after all invocations", func(t *testing.T) {
		h := newTestHarness(t, 0)
		eval := &individualRecordingEvaluator{}
		r := New(h.registry, WithConcurrency(4))

		results, err := r.RunSingleInput(context.Background(), testInput(), testConfig(),
			combos, domain.NewExperimentState(), h.meter, eval)
		require.NoError(t, err)

		require.Len(t, eval.calls, 4)
		for i, call := range eval.calls {
			assert.Same(t, results[i], call, "evaluation must follow combination order")
		}
	})
}

func TestDeltaMeter(t *testing.T) {
	meter := NewDeltaMeter()
	assert.Zero(t, meter.CurrentUsage())

	meter.Add(5)
	assert.InDelta(t, 5.0, meter.CurrentUsage(), 1e-12)
	assert.Zero(t, meter.CurrentUsage(), "query point advances")

	meter.Add(2)
	meter.Add(3)
	assert.InDelta(t, 5.0, meter.CurrentUsage(), 1e-12)
}
