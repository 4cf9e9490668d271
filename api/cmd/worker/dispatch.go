package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"frontdesk-queue-system/api/internal/models"
	"frontdesk-queue-system/api/internal/repos"
	"frontdesk-queue-system/shared/events"
	"frontdesk-queue-system/shared/logx"
	"frontdesk-queue-system/shared/metricsx"
)

type outboxStore interface {
	GetByID(ctx context.Context, eventID uuid.UUID) (models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextRetryAt *time.Time, lastErr string, dead bool) error
}

type envelopePublisher interface {
	PublishEnvelope(ctx context.Context, topic string, env events.Envelope) error
}

type dispatcher struct {
	outbox      outboxStore
	producer    envelopePublisher
	maxAttempts int
	now         func() time.Time
	logger      logx.Logger
}

// dispatch delivers one outbox row. A returned error asks asynq to retry;
// rows past maxAttempts are parked as dead and return nil.
func (d dispatcher) dispatch(ctx context.Context, eventID uuid.UUID) error {
	event, err := d.outbox.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status == repos.OutboxStatusDelivered || event.Status == repos.OutboxStatusDead {
		return nil
	}

	var env events.Envelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		metricsx.IncOutboxDispatched("dead")
		d.logger.Warn(ctx, "outbox_poison", "outbox payload is not an event envelope",
			slog.String("event_id", event.EventID.String()),
			slog.String("error", err.Error()),
		)
		return d.outbox.MarkFailed(ctx, event.EventID, event.Attempts+1, nil, err.Error(), true)
	}

	if err := d.producer.PublishEnvelope(ctx, event.Topic, env); err != nil {
		attempts := event.Attempts + 1
		nextRetry := d.now().UTC().Add(retryDelay(attempts))
		dead := attempts >= d.maxAttempts
		_ = d.outbox.MarkFailed(ctx, event.EventID, attempts, &nextRetry, err.Error(), dead)
		if dead {
			metricsx.IncOutboxDispatched("dead")
			d.logger.Warn(ctx, "outbox_dead", "outbox event moved to dead-letter",
				slog.String("event_id", event.EventID.String()),
				slog.String("event_type", event.EventType),
				slog.Int("attempts", attempts),
			)
			return nil
		}
		metricsx.IncOutboxDispatched("retry")
		return err
	}
	if err := d.outbox.MarkDelivered(ctx, event.EventID); err != nil {
		return err
	}
	metricsx.IncOutboxDispatched("delivered")
	return nil
}

func retryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 5 * time.Second
	}
	delay := time.Duration(attempt*attempt) * 5 * time.Second
	if delay > 5*time.Minute {
		return 5 * time.Minute
	}
	return delay
}
