package store

import (
	"context"
	"errors"
	"time"

	"frontdesk-queue-system/core/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record version conflict")
)

const DefaultActivityLimit = 1000

// Tickets lists in creation order.
type Tickets interface {
	List(ctx context.Context) ([]models.Ticket, error)
	Get(ctx context.Context, id string) (models.Ticket, error)
	// Create assigns ID, TicketNumber, CreatedAt, UpdatedAt and Version.
	Create(ctx context.Context, ticket models.Ticket) (models.Ticket, error)
	// Update merges patch, refreshes UpdatedAt and bumps Version. It returns
	// ErrNotFound for a missing id and ErrConflict when ExpectedVersion is
	// set and stale.
	Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error)
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status string) ([]models.Ticket, error)
	ListByStaff(ctx context.Context, staffID string) ([]models.Ticket, error)
}

// Appointments lists in creation order and mirrors the Tickets update rules.
type Appointments interface {
	List(ctx context.Context) ([]models.Appointment, error)
	Get(ctx context.Context, id string) (models.Appointment, error)
	// Create assigns ID, AppointmentNumber, CreatedAt, UpdatedAt and Version.
	Create(ctx context.Context, appt models.Appointment) (models.Appointment, error)
	Update(ctx context.Context, id string, patch models.AppointmentPatch) (models.Appointment, error)
	Delete(ctx context.Context, id string) error
	ListByStaff(ctx context.Context, staffID string) ([]models.Appointment, error)
}

// Staff lists in insertion order; routing relies on it being stable.
type Staff interface {
	List(ctx context.Context) ([]models.Staff, error)
	Get(ctx context.Context, id string) (models.Staff, error)
	ListAvailable(ctx context.Context) ([]models.Staff, error)
	Save(ctx context.Context, staff models.Staff) (models.Staff, error)
	SetAvailability(ctx context.Context, id string, available bool) (models.Staff, error)
}

type Notifications interface {
	List(ctx context.Context) ([]models.Notification, error)
	Get(ctx context.Context, id string) (models.Notification, error)
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	MarkRead(ctx context.Context, id string) (models.Notification, error)
	ListUnread(ctx context.Context) ([]models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error)
	ListByEntity(ctx context.Context, entityID string, entityType string) ([]models.Notification, error)
}

// Activity is an append-only, bounded log. Implementations keep only the
// newest entries up to their limit.
type Activity interface {
	List(ctx context.Context) ([]models.ActivityLogEntry, error)
	Append(ctx context.Context, entry models.ActivityLogEntry) (models.ActivityLogEntry, error)
	ListByType(ctx context.Context, typ string) ([]models.ActivityLogEntry, error)
	ListByEntity(ctx context.Context, entityID string, entityType string) ([]models.ActivityLogEntry, error)
}

type Store interface {
	Tickets() Tickets
	Appointments() Appointments
	Staff() Staff
	Notifications() Notifications
	Activity() Activity
}

// TicketsOn keeps the tickets created on now's calendar day in now's location.
func TicketsOn(tickets []models.Ticket, now time.Time) []models.Ticket {
	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if sameDay(t.CreatedAt, now) {
			out = append(out, t)
		}
	}
	return out
}

// AppointmentsOn keeps the appointments scheduled on now's calendar day.
func AppointmentsOn(appts []models.Appointment, now time.Time) []models.Appointment {
	out := make([]models.Appointment, 0, len(appts))
	for _, a := range appts {
		if sameDay(a.ScheduledAt, now) {
			out = append(out, a)
		}
	}
	return out
}

// ActivityOn keeps the entries recorded on now's calendar day in now's location.
func ActivityOn(entries []models.ActivityLogEntry, now time.Time) []models.ActivityLogEntry {
	out := make([]models.ActivityLogEntry, 0, len(entries))
	for _, e := range entries {
		if sameDay(e.Timestamp, now) {
			out = append(out, e)
		}
	}
	return out
}

func sameDay(ts time.Time, now time.Time) bool {
	ty, tm, td := ts.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ty == ny && tm == nm && td == nd
}
