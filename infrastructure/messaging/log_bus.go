// Package messaging holds event bus implementations that do not need AWS.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/events"
)

// LogEventBus writes events to the log instead of a broker. Used in
// development and in tests that only care that events were emitted.
type LogEventBus struct {
	logger *zap.Logger
}

var _ ports.EventBus = (*LogEventBus)(nil)

// NewLogEventBus creates a log-backed event bus.
func NewLogEventBus(logger *zap.Logger) *LogEventBus {
	return &LogEventBus{logger: logger}
}

// Publish logs a single event.
func (b *LogEventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.logger.Info("domain event",
		zap.String("eventId", event.GetEventID()),
		zap.String("eventType", event.GetEventType()),
		zap.Time("timestamp", event.GetTimestamp()),
	)
	return nil
}

// PublishBatch logs each event in the batch.
func (b *LogEventBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
