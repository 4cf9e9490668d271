package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
)

const ticketColumns = `id, ticket_number, name, phone, email, company, purpose_of_visit, priority, notes,
	host_staff_id, host_staff_name, status, satisfaction_rating, check_in_time, check_out_time,
	created_at, updated_at, version`

const ticketNumberConstraint = "tickets_ticket_number_key"

var ErrTicketNumbersExhausted = errors.New("ticket number space exhausted")

type TicketsRepo struct {
	db   DBTX
	opts options
}

func NewTicketsRepo(db DBTX, opts ...Option) *TicketsRepo {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &TicketsRepo{db: db, opts: o}
}

func (r *TicketsRepo) List(ctx context.Context) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTicket)
}

func (r *TicketsRepo) Get(ctx context.Context, id string) (models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		return models.Ticket{}, fmt.Errorf("ticket %s: %w", id, notFound(err))
	}
	return t, nil
}

// Create draws a fresh ticket number on every unique-constraint collision.
func (r *TicketsRepo) Create(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	now := r.opts.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	for attempt := 0; attempt < store.MaxTicketNumberAttempts; attempt++ {
		t.TicketNumber = r.opts.ticketNumber(now)
		created, err := scanTicket(r.db.QueryRow(ctx, `
			INSERT INTO tickets (
				id, ticket_number, name, phone, email, company, purpose_of_visit, priority, notes,
				host_staff_id, host_staff_name, status, satisfaction_rating, check_in_time, check_out_time,
				created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING `+ticketColumns,
			t.ID, t.TicketNumber, t.Name, t.Phone, t.Email, t.Company, t.PurposeOfVisit, string(t.Priority), t.Notes,
			t.HostStaffID, t.HostStaffName, t.Status, t.SatisfactionRating, t.CheckInTime, t.CheckOutTime,
			t.CreatedAt, t.UpdatedAt, t.Version,
		))
		if err == nil {
			return created, nil
		}
		if isUniqueViolation(err, ticketNumberConstraint) {
			continue
		}
		return models.Ticket{}, err
	}
	return models.Ticket{}, ErrTicketNumbersExhausted
}

// Update only writes the columns the patch sets. A stale ExpectedVersion
// matches no row and is reported as store.ErrConflict.
func (r *TicketsRepo) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	args := []any{id, r.opts.now()}
	sets := []string{"updated_at = $2", "version = version + 1"}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.Priority != nil {
		set("priority", string(*patch.Priority))
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.HostStaffID != nil {
		set("host_staff_id", *patch.HostStaffID)
	}
	if patch.HostStaffName != nil {
		set("host_staff_name", *patch.HostStaffName)
	}
	if patch.SatisfactionRating != nil {
		set("satisfaction_rating", *patch.SatisfactionRating)
	}
	if patch.CheckOutTime != nil {
		set("check_out_time", *patch.CheckOutTime)
	}

	where := "id = $1"
	if patch.ExpectedVersion != nil {
		args = append(args, *patch.ExpectedVersion)
		where += fmt.Sprintf(" AND version = $%d", len(args))
	}

	updated, err := scanTicket(r.db.QueryRow(ctx,
		`UPDATE tickets SET `+strings.Join(sets, ", ")+` WHERE `+where+` RETURNING `+ticketColumns,
		args...,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, err
	}
	if patch.ExpectedVersion == nil {
		return models.Ticket{}, fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}

	var current int64
	if err := r.db.QueryRow(ctx, `SELECT version FROM tickets WHERE id = $1`, id).Scan(&current); err != nil {
		return models.Ticket{}, fmt.Errorf("ticket %s: %w", id, notFound(err))
	}
	return models.Ticket{}, fmt.Errorf("ticket %s at version %d, expected %d: %w", id, current, *patch.ExpectedVersion, store.ErrConflict)
}

func (r *TicketsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *TicketsRepo) ListByStatus(ctx context.Context, status string) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE status = $1 ORDER BY seq ASC`, status)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTicket)
}

func (r *TicketsRepo) ListByStaff(ctx context.Context, staffID string) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE host_staff_id = $1 ORDER BY seq ASC`, staffID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTicket)
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var (
		t        models.Ticket
		priority string
	)
	err := row.Scan(
		&t.ID, &t.TicketNumber, &t.Name, &t.Phone, &t.Email, &t.Company, &t.PurposeOfVisit, &priority, &t.Notes,
		&t.HostStaffID, &t.HostStaffName, &t.Status, &t.SatisfactionRating, &t.CheckInTime, &t.CheckOutTime,
		&t.CreatedAt, &t.UpdatedAt, &t.Version,
	)
	if err != nil {
		return models.Ticket{}, err
	}
	t.Priority = models.Priority(priority)
	t.CheckInTime = t.CheckInTime.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.CheckOutTime != nil {
		out := t.CheckOutTime.UTC()
		t.CheckOutTime = &out
	}
	return t, nil
}
