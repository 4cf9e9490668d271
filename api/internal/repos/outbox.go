package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"frontdesk-queue-system/api/internal/models"
	"frontdesk-queue-system/shared/events"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusSending   = "sending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusDead      = "dead"
)

const outboxColumns = `event_id, aggregate_type, aggregate_id, event_type, topic, payload, status, attempts,
	next_retry_at, locked_at, locked_by, last_error, created_at, updated_at, published_at`

type OutboxRepo struct {
	db DBTX
}

func NewOutboxRepo(db DBTX) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) Insert(ctx context.Context, db DBTX, event models.OutboxEvent) (models.OutboxEvent, error) {
	if db == nil {
		db = r.db
	}
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	return scanOutbox(db.QueryRow(ctx, `
		INSERT INTO outbox_events (
			event_id, aggregate_type, aggregate_id, event_type, topic, payload, status, attempts,
			next_retry_at, locked_at, locked_by, last_error, created_at, updated_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+outboxColumns,
		event.EventID, event.AggregateType, event.AggregateID, event.EventType, event.Topic, event.Payload, event.Status, event.Attempts,
		event.NextRetryAt, event.LockedAt, event.LockedBy, event.LastError, event.CreatedAt, event.UpdatedAt, event.PublishedAt,
	))
}

// ClaimPending moves up to limit due events to sending and returns them.
// Concurrent workers never claim the same row.
func (r *OutboxRepo) ClaimPending(ctx context.Context, owner string, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		WITH candidates AS (
			SELECT event_id
			FROM outbox_events
			WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= now())
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		UPDATE outbox_events o
		SET status = $3, locked_at = now(), locked_by = $4, updated_at = now()
		FROM candidates c
		WHERE o.event_id = c.event_id
		RETURNING o.event_id, o.aggregate_type, o.aggregate_id, o.event_type, o.topic, o.payload, o.status, o.attempts,
			o.next_retry_at, o.locked_at, o.locked_by, o.last_error, o.created_at, o.updated_at, o.published_at
	`, OutboxStatusPending, limit, OutboxStatusSending, owner)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOutbox)
}

func (r *OutboxRepo) GetByID(ctx context.Context, eventID uuid.UUID) (models.OutboxEvent, error) {
	event, err := scanOutbox(r.db.QueryRow(ctx, `SELECT `+outboxColumns+` FROM outbox_events WHERE event_id = $1`, eventID))
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox event %s: %w", eventID, notFound(err))
	}
	return event, nil
}

func (r *OutboxRepo) MarkDelivered(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, published_at = now(), updated_at = now(), locked_at = NULL, locked_by = NULL
		WHERE event_id = $1
	`, eventID, OutboxStatusDelivered)
	return err
}

// MarkFailed returns the event to pending for another attempt, or parks it as
// dead once the caller gives up on it.
func (r *OutboxRepo) MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextRetryAt *time.Time, lastErr string, dead bool) error {
	status := OutboxStatusPending
	if dead {
		status = OutboxStatusDead
		nextRetryAt = nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, attempts = $3, next_retry_at = $4, last_error = $5, updated_at = now(), locked_at = NULL, locked_by = NULL
		WHERE event_id = $1
	`, eventID, status, attempts, nextRetryAt, lastErr)
	return err
}

// ReleaseStale hands events stuck in sending longer than olderThan back to
// pending, e.g. after a worker crashed between claim and dispatch.
func (r *OutboxRepo) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, locked_at = NULL, locked_by = NULL, updated_at = now()
		WHERE status = $2 AND locked_at < now() - make_interval(secs => $3)
	`, OutboxStatusPending, OutboxStatusSending, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *OutboxRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE status = $1`, status).Scan(&n)
	return n, err
}

func scanOutbox(row pgx.Row) (models.OutboxEvent, error) {
	var event models.OutboxEvent
	err := row.Scan(
		&event.EventID, &event.AggregateType, &event.AggregateID, &event.EventType, &event.Topic, &event.Payload, &event.Status, &event.Attempts,
		&event.NextRetryAt, &event.LockedAt, &event.LockedBy, &event.LastError, &event.CreatedAt, &event.UpdatedAt, &event.PublishedAt,
	)
	return event, err
}

// OutboxPublisher records ticket events in the outbox for the worker to
// deliver to Kafka.
type OutboxPublisher struct {
	repo  *OutboxRepo
	topic string
}

func NewOutboxPublisher(repo *OutboxRepo, topic string) *OutboxPublisher {
	if topic == "" {
		topic = events.TopicTicketEvents
	}
	return &OutboxPublisher{repo: repo, topic: topic}
}

func (p *OutboxPublisher) Publish(ctx context.Context, env events.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = p.repo.Insert(ctx, nil, models.OutboxEvent{
		EventID:       env.EventID,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		EventType:     env.EventType,
		Topic:         p.topic,
		Payload:       payload,
		CreatedAt:     env.OccurredAt,
	})
	return err
}
