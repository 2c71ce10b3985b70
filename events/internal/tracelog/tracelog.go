// Package tracelog records webhook delivery attempts.
package tracelog

import (
	"context"
	"log/slog"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

// Sink persists webhook trace entries. Callers must not let a sink failure abort a
// delivery.
type Sink interface {
	CreateWebhookResponseEntry(ctx context.Context, entry *models.LogEntry) error
}

// LogSink writes trace entries to the structured log. It is used when no trace store
// is configured.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink that logs each entry at info level.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) CreateWebhookResponseEntry(ctx context.Context, entry *models.LogEntry) error {
	s.logger.InfoContext(ctx, "webhook response",
		logging.EventID(entry.CloudEventID),
		logging.EventType(entry.CloudEventType),
		slog.String("resource", entry.CloudEventResource),
		logging.Consumer(entry.Consumer),
		logging.SubscriptionID(entry.SubscriptionID),
		logging.Endpoint(entry.Endpoint),
		logging.Status(entry.StatusCode),
		slog.Bool("success", entry.IsSuccess),
	)
	return nil
}
