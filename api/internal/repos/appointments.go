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

const appointmentColumns = `id, appointment_number, visitor_name, visitor_phone, visitor_email, visitor_company,
	staff_id, staff_name, scheduled_at, duration_minutes, purpose, location, meeting_room, status, priority,
	notes, reminder_sent, confirmation_sent, created_by, created_at, updated_at, version`

const appointmentNumberConstraint = "appointments_appointment_number_key"

var ErrAppointmentNumbersExhausted = errors.New("appointment number space exhausted")

type AppointmentsRepo struct {
	db   DBTX
	opts options
}

func NewAppointmentsRepo(db DBTX, opts ...Option) *AppointmentsRepo {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &AppointmentsRepo{db: db, opts: o}
}

func (r *AppointmentsRepo) List(ctx context.Context) ([]models.Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (r *AppointmentsRepo) Get(ctx context.Context, id string) (models.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, notFound(err))
	}
	return a, nil
}

func (r *AppointmentsRepo) Create(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	now := r.opts.now()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	for attempt := 0; attempt < store.MaxTicketNumberAttempts; attempt++ {
		a.AppointmentNumber = r.opts.appointmentNumber(now)
		created, err := scanAppointment(r.db.QueryRow(ctx, `
			INSERT INTO appointments (
				id, appointment_number, visitor_name, visitor_phone, visitor_email, visitor_company,
				staff_id, staff_name, scheduled_at, duration_minutes, purpose, location, meeting_room, status, priority,
				notes, reminder_sent, confirmation_sent, created_by, created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
			RETURNING `+appointmentColumns,
			a.ID, a.AppointmentNumber, a.VisitorName, a.VisitorPhone, a.VisitorEmail, a.VisitorCompany,
			a.StaffID, a.StaffName, a.ScheduledAt, a.DurationMinutes, a.Purpose, a.Location, a.MeetingRoom, a.Status, string(a.Priority),
			a.Notes, a.ReminderSent, a.ConfirmationSent, a.CreatedBy, a.CreatedAt, a.UpdatedAt, a.Version,
		))
		if err == nil {
			return created, nil
		}
		if isUniqueViolation(err, appointmentNumberConstraint) {
			continue
		}
		return models.Appointment{}, err
	}
	return models.Appointment{}, ErrAppointmentNumbersExhausted
}

func (r *AppointmentsRepo) Update(ctx context.Context, id string, patch models.AppointmentPatch) (models.Appointment, error) {
	args := []any{id, r.opts.now()}
	sets := []string{"updated_at = $2", "version = version + 1"}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.ScheduledAt != nil {
		set("scheduled_at", *patch.ScheduledAt)
	}
	if patch.DurationMinutes != nil {
		set("duration_minutes", *patch.DurationMinutes)
	}
	if patch.Location != nil {
		set("location", *patch.Location)
	}
	if patch.MeetingRoom != nil {
		set("meeting_room", *patch.MeetingRoom)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.ReminderSent != nil {
		set("reminder_sent", *patch.ReminderSent)
	}
	if patch.ConfirmationSent != nil {
		set("confirmation_sent", *patch.ConfirmationSent)
	}

	where := "id = $1"
	if patch.ExpectedVersion != nil {
		args = append(args, *patch.ExpectedVersion)
		where += fmt.Sprintf(" AND version = $%d", len(args))
	}

	updated, err := scanAppointment(r.db.QueryRow(ctx,
		`UPDATE appointments SET `+strings.Join(sets, ", ")+` WHERE `+where+` RETURNING `+appointmentColumns,
		args...,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Appointment{}, err
	}
	if patch.ExpectedVersion == nil {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}

	var current int64
	if err := r.db.QueryRow(ctx, `SELECT version FROM appointments WHERE id = $1`, id).Scan(&current); err != nil {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, notFound(err))
	}
	return models.Appointment{}, fmt.Errorf("appointment %s at version %d, expected %d: %w", id, current, *patch.ExpectedVersion, store.ErrConflict)
}

func (r *AppointmentsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *AppointmentsRepo) ListByStaff(ctx context.Context, staffID string) ([]models.Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE staff_id = $1 ORDER BY seq ASC`, staffID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func scanAppointment(row pgx.Row) (models.Appointment, error) {
	var (
		a        models.Appointment
		priority string
	)
	err := row.Scan(
		&a.ID, &a.AppointmentNumber, &a.VisitorName, &a.VisitorPhone, &a.VisitorEmail, &a.VisitorCompany,
		&a.StaffID, &a.StaffName, &a.ScheduledAt, &a.DurationMinutes, &a.Purpose, &a.Location, &a.MeetingRoom, &a.Status, &priority,
		&a.Notes, &a.ReminderSent, &a.ConfirmationSent, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		return models.Appointment{}, err
	}
	a.Priority = models.Priority(priority)
	a.ScheduledAt = a.ScheduledAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}
