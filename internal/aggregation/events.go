package aggregation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ahrav/go-crucible/internal/domain"
	"github.com/ahrav/go-crucible/pkg/events"
)

// EventExperimentAssembled is emitted once per Assemble call with the shape
// of the finished report.
const EventExperimentAssembled = "experiment.assembled"

// eventSource tags envelopes emitted by this package.
const eventSource = "experiment-assembler"

// eventEmitter wraps best-effort emission of assembly events. A nil emitter
// (no sink configured) is valid and does nothing.
type eventEmitter struct {
	sink   events.EventSink
	logger *slog.Logger
	runID  string
}

func newEventEmitter(sink events.EventSink, logger *slog.Logger) *eventEmitter {
	return &eventEmitter{sink: sink, logger: logger, runID: uuid.New().String()}
}

// experimentAssembledPayload is the payload of EventExperimentAssembled.
type experimentAssembledPayload struct {
	ResultCount      int `json:"result_count"`
	GroupCount       int `json:"group_count"`
	CombinationCount int `json:"combination_count"`
}

func (e *eventEmitter) emitExperimentAssembled(ctx context.Context, experiment *domain.Experiment, resultCount int) {
	if e == nil || e.sink == nil {
		return
	}
	envelope, err := events.NewEnvelope(EventExperimentAssembled, eventSource, "", e.runID,
		experimentAssembledPayload{
			ResultCount:      resultCount,
			GroupCount:       len(experiment.GroupExperimentResults),
			CombinationCount: len(experiment.CombinationAggregatedMetrics),
		})
	if err != nil {
		e.logger.Warn("build assembly event", "error", err)
		return
	}
	events.EmitSafe(ctx, e.sink, e.logger, envelope)
}
