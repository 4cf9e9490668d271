package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
)

const activityColumns = `id, type, action, description, entity_id, entity_type, performed_by, performed_by_name, timestamp`

type ActivityRepo struct {
	db   DBTX
	opts options
}

func NewActivityRepo(db DBTX, opts ...Option) *ActivityRepo {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ActivityRepo{db: db, opts: o}
}

func (r *ActivityRepo) List(ctx context.Context) ([]models.ActivityLogEntry, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activity_log ORDER BY seq ASC`)
}

// Append inserts the entry and trims everything older than the newest
// activityLimit entries in the same batch.
func (r *ActivityRepo) Append(ctx context.Context, entry models.ActivityLogEntry) (models.ActivityLogEntry, error) {
	entry.ID = uuid.NewString()
	entry.Timestamp = r.opts.now()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO activity_log (id, type, action, description, entity_id, entity_type, performed_by, performed_by_name, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.Type, entry.Action, entry.Description, entry.EntityID, entry.EntityType,
		entry.PerformedBy, entry.PerformedByName, entry.Timestamp)
	batch.Queue(`
		DELETE FROM activity_log
		WHERE seq <= (SELECT seq FROM activity_log ORDER BY seq DESC OFFSET $1 LIMIT 1)
	`, r.opts.activityLimit)

	results := r.db.SendBatch(ctx, batch)
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return models.ActivityLogEntry{}, err
	}
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return models.ActivityLogEntry{}, err
	}
	if err := results.Close(); err != nil {
		return models.ActivityLogEntry{}, err
	}
	return entry, nil
}

func (r *ActivityRepo) ListByType(ctx context.Context, typ string) ([]models.ActivityLogEntry, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activity_log WHERE type = $1 ORDER BY seq ASC`, typ)
}

func (r *ActivityRepo) ListByEntity(ctx context.Context, entityID string, entityType string) ([]models.ActivityLogEntry, error) {
	return r.query(ctx, `
		SELECT `+activityColumns+`
		FROM activity_log
		WHERE entity_id = $1 AND entity_type = $2
		ORDER BY seq ASC
	`, entityID, entityType)
}

func (r *ActivityRepo) query(ctx context.Context, sql string, args ...any) ([]models.ActivityLogEntry, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanActivity)
}

func scanActivity(row pgx.Row) (models.ActivityLogEntry, error) {
	var e models.ActivityLogEntry
	err := row.Scan(&e.ID, &e.Type, &e.Action, &e.Description, &e.EntityID, &e.EntityType,
		&e.PerformedBy, &e.PerformedByName, &e.Timestamp)
	if err != nil {
		return models.ActivityLogEntry{}, err
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

var _ store.Activity = (*ActivityRepo)(nil)
