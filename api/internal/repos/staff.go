package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
)

const staffColumns = `id, name, email, phone, department, position, is_available, notification_preferences`

type StaffRepo struct {
	db DBTX
}

func NewStaffRepo(db DBTX) *StaffRepo {
	return &StaffRepo{db: db}
}

func (r *StaffRepo) List(ctx context.Context) ([]models.Staff, error) {
	rows, err := r.db.Query(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanStaff)
}

func (r *StaffRepo) Get(ctx context.Context, id string) (models.Staff, error) {
	s, err := scanStaff(r.db.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	if err != nil {
		return models.Staff{}, fmt.Errorf("staff %s: %w", id, notFound(err))
	}
	return s, nil
}

func (r *StaffRepo) ListAvailable(ctx context.Context) ([]models.Staff, error) {
	rows, err := r.db.Query(ctx, `SELECT `+staffColumns+` FROM staff WHERE is_available ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanStaff)
}

// Save upserts by id. An existing member keeps its directory position.
func (r *StaffRepo) Save(ctx context.Context, s models.Staff) (models.Staff, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	prefs, err := json.Marshal(s.NotificationPreferences)
	if err != nil {
		return models.Staff{}, err
	}
	return scanStaff(r.db.QueryRow(ctx, `
		INSERT INTO staff (id, name, email, phone, department, position, is_available, notification_preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			department = EXCLUDED.department,
			position = EXCLUDED.position,
			is_available = EXCLUDED.is_available,
			notification_preferences = EXCLUDED.notification_preferences
		RETURNING `+staffColumns,
		s.ID, s.Name, s.Email, s.Phone, s.Department, s.Position, s.IsAvailable, prefs,
	))
}

func (r *StaffRepo) SetAvailability(ctx context.Context, id string, available bool) (models.Staff, error) {
	s, err := scanStaff(r.db.QueryRow(ctx,
		`UPDATE staff SET is_available = $2 WHERE id = $1 RETURNING `+staffColumns, id, available))
	if err != nil {
		return models.Staff{}, fmt.Errorf("staff %s: %w", id, notFound(err))
	}
	return s, nil
}

func scanStaff(row pgx.Row) (models.Staff, error) {
	var (
		s     models.Staff
		prefs []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Department, &s.Position, &s.IsAvailable, &prefs); err != nil {
		return models.Staff{}, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &s.NotificationPreferences); err != nil {
			return models.Staff{}, fmt.Errorf("decode notification preferences: %w", err)
		}
	}
	return s, nil
}

var _ store.Staff = (*StaffRepo)(nil)
