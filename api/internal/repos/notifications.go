package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
)

const notificationColumns = `id, type, title, message, recipient_id, recipient_name, related_entity_id,
	related_entity_type, priority, is_read, created_at`

type NotificationsRepo struct {
	db   DBTX
	opts options
}

func NewNotificationsRepo(db DBTX, opts ...Option) *NotificationsRepo {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &NotificationsRepo{db: db, opts: o}
}

func (r *NotificationsRepo) List(ctx context.Context) ([]models.Notification, error) {
	return r.query(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY seq ASC`)
}

func (r *NotificationsRepo) Get(ctx context.Context, id string) (models.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return models.Notification{}, fmt.Errorf("notification %s: %w", id, notFound(err))
	}
	return n, nil
}

// Create always stores the notification unread.
func (r *NotificationsRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = uuid.NewString()
	n.IsRead = false
	n.CreatedAt = r.opts.now()
	return scanNotification(r.db.QueryRow(ctx, `
		INSERT INTO notifications (
			id, type, title, message, recipient_id, recipient_name, related_entity_id,
			related_entity_type, priority, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+notificationColumns,
		n.ID, n.Type, n.Title, n.Message, n.RecipientID, n.RecipientName, n.RelatedEntityID,
		n.RelatedEntityType, string(n.Priority), n.IsRead, n.CreatedAt,
	))
}

func (r *NotificationsRepo) MarkRead(ctx context.Context, id string) (models.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING `+notificationColumns, id))
	if err != nil {
		return models.Notification{}, fmt.Errorf("notification %s: %w", id, notFound(err))
	}
	return n, nil
}

func (r *NotificationsRepo) ListUnread(ctx context.Context) ([]models.Notification, error) {
	return r.query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE NOT is_read ORDER BY seq ASC`)
}

func (r *NotificationsRepo) ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error) {
	return r.query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE recipient_id = $1 ORDER BY seq ASC`, recipientID)
}

func (r *NotificationsRepo) ListByEntity(ctx context.Context, entityID string, entityType string) ([]models.Notification, error) {
	return r.query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE related_entity_id = $1 AND related_entity_type = $2
		ORDER BY seq ASC
	`, entityID, entityType)
}

func (r *NotificationsRepo) query(ctx context.Context, sql string, args ...any) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNotification)
}

func scanNotification(row pgx.Row) (models.Notification, error) {
	var (
		n        models.Notification
		priority string
	)
	err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.RecipientID, &n.RecipientName, &n.RelatedEntityID,
		&n.RelatedEntityType, &priority, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return models.Notification{}, err
	}
	n.Priority = models.Priority(priority)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

var _ store.Notifications = (*NotificationsRepo)(nil)
