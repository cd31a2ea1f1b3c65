// Package events provides the generic event infrastructure for experiment
// observability. It defines the Envelope type wrapping event payloads with
// consistent metadata and the EventSink interface events are delivered to.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps experiment events with consistent metadata. It is a generic
// container for any payload while keeping standard fields for routing,
// correlation, and schema evolution.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing.
	// Examples: "runner.combination_completed", "experiment.assembled".
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	Source string `json:"source"`

	// Version enables schema evolution, following semantic versioning.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// ExperimentID correlates every event of one experiment run.
	ExperimentID string `json:"experiment_id"`

	// RunID distinguishes repeated runs of the same experiment.
	RunID string `json:"run_id"`

	// Payload contains the event data as JSON. Schema varies by Type.
	Payload json.RawMessage `json:"payload"`
}

// SchemaVersion is the current envelope schema version.
const SchemaVersion = "1.0.0"

// NewEnvelope builds an envelope around a JSON-serializable payload.
func NewEnvelope(eventType, source, experimentID, runID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:           uuid.New().String(),
		Type:         eventType,
		Source:       source,
		Version:      SchemaVersion,
		Timestamp:    time.Now(),
		ExperimentID: experimentID,
		RunID:        runID,
		Payload:      raw,
	}, nil
}

// EventSink delivers events to downstream consumers. Implementations may be
// database outboxes, message queues, or simple log writers.
//
// Events matter for observability, not correctness: callers must not fail
// their primary operation because a sink append failed.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	// Implementations should handle duplicates as no-ops and return quickly.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink is a null EventSink for tests or when events are disabled.
type NoOpEventSink struct{}

// Append implements EventSink with no-op behavior.
func (NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// emitMaxAttempts and emitRetryDelay bound the best-effort retry in EmitSafe.
const (
	emitMaxAttempts = 2
	emitRetryDelay  = 200 * time.Millisecond
)

// EmitSafe appends an envelope to the sink with a short retry, logging
// failures instead of propagating them. A nil sink is a no-op, which is the
// normal configuration in tests.
func EmitSafe(ctx context.Context, sink EventSink, logger *slog.Logger, envelope Envelope) {
	if sink == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= emitMaxAttempts; attempt++ {
		if err = sink.Append(ctx, envelope); err == nil {
			return
		}
		if attempt < emitMaxAttempts {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(emitRetryDelay):
				continue
			}
		}
		break
	}

	logger.Warn("event emission failed",
		"event_type", envelope.Type,
		"event_id", envelope.ID,
		"experiment_id", envelope.ExperimentID,
		"error", err)
}
