// Package events provides event sink implementations for best-effort
// notification of external collaborators.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/spareflow/spareflow/internal/model"
)

// LogSink publishes events to the structured log. It stands in for a real
// event-distribution collaborator in development and in the CLI.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger falls back to the default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, event model.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	s.logger.Info("event published",
		"event_type", string(event.Type),
		"occurred_at", event.OccurredAt,
		"payload", string(payload))

	return nil
}

// NoopSink discards every event.
type NoopSink struct{}

// Publish does nothing.
func (NoopSink) Publish(context.Context, model.Event) error {
	return nil
}
