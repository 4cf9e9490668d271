// Package memory is the in-process Record Store used by default and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithActivityLimit bounds the activity log. Values <= 0 keep the default.
func WithActivityLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.activityLimit = limit
		}
	}
}

func WithTicketNumbers(next func(time.Time) string) Option {
	return func(s *Store) { s.ticketNumber = next }
}

func WithAppointmentNumbers(next func(time.Time) string) Option {
	return func(s *Store) { s.appointmentNumber = next }
}

// Store keeps every entity kind in insertion-ordered slices behind one lock.
type Store struct {
	mu sync.RWMutex

	now               func() time.Time
	ticketNumber      func(time.Time) string
	appointmentNumber func(time.Time) string
	activityLimit     int

	tickets       []models.Ticket
	appointments  []models.Appointment
	issuedNumbers map[string]struct{}
	staff         []models.Staff
	notifications []models.Notification
	activity      []models.ActivityLogEntry
}

func New(opts ...Option) *Store {
	s := &Store{
		now:               func() time.Time { return time.Now().UTC() },
		ticketNumber:      store.NewTicketNumber,
		appointmentNumber: store.NewAppointmentNumber,
		activityLimit:     store.DefaultActivityLimit,
		issuedNumbers:     map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Tickets() store.Tickets             { return ticketStore{s} }
func (s *Store) Appointments() store.Appointments   { return appointmentStore{s} }
func (s *Store) Staff() store.Staff                 { return staffStore{s} }
func (s *Store) Notifications() store.Notifications { return notificationStore{s} }
func (s *Store) Activity() store.Activity           { return activityStore{s} }

type ticketStore struct{ s *Store }

func (t ticketStore) List(ctx context.Context) ([]models.Ticket, error) {
	return t.filter(func(models.Ticket) bool { return true }), nil
}

func (t ticketStore) Get(ctx context.Context, id string) (models.Ticket, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	idx := t.indexOf(id)
	if idx < 0 {
		return models.Ticket{}, fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}
	return cloneTicket(t.s.tickets[idx]), nil
}

func (t ticketStore) Create(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	now := t.s.now()
	number, err := t.s.issueNumber(t.s.ticketNumber, now)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket.ID = uuid.NewString()
	ticket.TicketNumber = number
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.Version = 1
	ticket = cloneTicket(ticket)
	t.s.tickets = append(t.s.tickets, ticket)
	return cloneTicket(ticket), nil
}

func (t ticketStore) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	idx := t.indexOf(id)
	if idx < 0 {
		return models.Ticket{}, fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}
	current := t.s.tickets[idx]
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != current.Version {
		return models.Ticket{}, fmt.Errorf("ticket %s at version %d, expected %d: %w", id, current.Version, *patch.ExpectedVersion, store.ErrConflict)
	}
	next := cloneTicket(patch.Apply(current))
	next.UpdatedAt = t.s.now()
	next.Version = current.Version + 1
	t.s.tickets[idx] = next
	return cloneTicket(next), nil
}

func (t ticketStore) Delete(ctx context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	idx := t.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}
	t.s.tickets = append(t.s.tickets[:idx], t.s.tickets[idx+1:]...)
	return nil
}

func (t ticketStore) ListByStatus(ctx context.Context, status string) ([]models.Ticket, error) {
	return t.filter(func(tk models.Ticket) bool { return tk.Status == status }), nil
}

func (t ticketStore) ListByStaff(ctx context.Context, staffID string) ([]models.Ticket, error) {
	return t.filter(func(tk models.Ticket) bool { return tk.HostStaffID == staffID }), nil
}

func (t ticketStore) filter(keep func(models.Ticket) bool) []models.Ticket {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]models.Ticket, 0, len(t.s.tickets))
	for _, tk := range t.s.tickets {
		if keep(tk) {
			out = append(out, cloneTicket(tk))
		}
	}
	return out
}

func (t ticketStore) indexOf(id string) int {
	for i := range t.s.tickets {
		if t.s.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

// issueNumber never hands out a number twice, including numbers of deleted
// records. Callers hold s.mu.
func (s *Store) issueNumber(next func(time.Time) string, now time.Time) (string, error) {
	for attempt := 0; attempt < store.MaxTicketNumberAttempts; attempt++ {
		number := next(now)
		if _, taken := s.issuedNumbers[number]; taken {
			continue
		}
		s.issuedNumbers[number] = struct{}{}
		return number, nil
	}
	return "", errors.New("record number space exhausted")
}

func cloneTicket(t models.Ticket) models.Ticket {
	if t.SatisfactionRating != nil {
		rating := *t.SatisfactionRating
		t.SatisfactionRating = &rating
	}
	if t.CheckOutTime != nil {
		out := *t.CheckOutTime
		t.CheckOutTime = &out
	}
	return t
}

type appointmentStore struct{ s *Store }

func (a appointmentStore) List(ctx context.Context) ([]models.Appointment, error) {
	return a.filter(func(models.Appointment) bool { return true }), nil
}

func (a appointmentStore) Get(ctx context.Context, id string) (models.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	idx := a.indexOf(id)
	if idx < 0 {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	return a.s.appointments[idx], nil
}

func (a appointmentStore) Create(ctx context.Context, appt models.Appointment) (models.Appointment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	now := a.s.now()
	number, err := a.s.issueNumber(a.s.appointmentNumber, now)
	if err != nil {
		return models.Appointment{}, err
	}
	appt.ID = uuid.NewString()
	appt.AppointmentNumber = number
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Version = 1
	a.s.appointments = append(a.s.appointments, appt)
	return appt, nil
}

func (a appointmentStore) Update(ctx context.Context, id string, patch models.AppointmentPatch) (models.Appointment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	idx := a.indexOf(id)
	if idx < 0 {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	current := a.s.appointments[idx]
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != current.Version {
		return models.Appointment{}, fmt.Errorf("appointment %s at version %d, expected %d: %w", id, current.Version, *patch.ExpectedVersion, store.ErrConflict)
	}
	next := patch.Apply(current)
	next.UpdatedAt = a.s.now()
	next.Version = current.Version + 1
	a.s.appointments[idx] = next
	return next, nil
}

func (a appointmentStore) Delete(ctx context.Context, id string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	idx := a.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	a.s.appointments = append(a.s.appointments[:idx], a.s.appointments[idx+1:]...)
	return nil
}

func (a appointmentStore) ListByStaff(ctx context.Context, staffID string) ([]models.Appointment, error) {
	return a.filter(func(appt models.Appointment) bool { return appt.StaffID == staffID }), nil
}

func (a appointmentStore) filter(keep func(models.Appointment) bool) []models.Appointment {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]models.Appointment, 0, len(a.s.appointments))
	for _, appt := range a.s.appointments {
		if keep(appt) {
			out = append(out, appt)
		}
	}
	return out
}

func (a appointmentStore) indexOf(id string) int {
	for i := range a.s.appointments {
		if a.s.appointments[i].ID == id {
			return i
		}
	}
	return -1
}

type staffStore struct{ s *Store }

func (st staffStore) List(ctx context.Context) ([]models.Staff, error) {
	return st.filter(func(models.Staff) bool { return true }), nil
}

func (st staffStore) Get(ctx context.Context, id string) (models.Staff, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	for _, staff := range st.s.staff {
		if staff.ID == id {
			return staff, nil
		}
	}
	return models.Staff{}, fmt.Errorf("staff %s: %w", id, store.ErrNotFound)
}

func (st staffStore) ListAvailable(ctx context.Context) ([]models.Staff, error) {
	return st.filter(func(staff models.Staff) bool { return staff.IsAvailable }), nil
}

// Save replaces an existing entry in place, keeping its position, or appends.
func (st staffStore) Save(ctx context.Context, staff models.Staff) (models.Staff, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	for i := range st.s.staff {
		if st.s.staff[i].ID == staff.ID {
			st.s.staff[i] = staff
			return staff, nil
		}
	}
	st.s.staff = append(st.s.staff, staff)
	return staff, nil
}

func (st staffStore) SetAvailability(ctx context.Context, id string, available bool) (models.Staff, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for i := range st.s.staff {
		if st.s.staff[i].ID == id {
			st.s.staff[i].IsAvailable = available
			return st.s.staff[i], nil
		}
	}
	return models.Staff{}, fmt.Errorf("staff %s: %w", id, store.ErrNotFound)
}

func (st staffStore) filter(keep func(models.Staff) bool) []models.Staff {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	out := make([]models.Staff, 0, len(st.s.staff))
	for _, staff := range st.s.staff {
		if keep(staff) {
			out = append(out, staff)
		}
	}
	return out
}

type notificationStore struct{ s *Store }

func (n notificationStore) List(ctx context.Context) ([]models.Notification, error) {
	return n.filter(func(models.Notification) bool { return true }), nil
}

func (n notificationStore) Get(ctx context.Context, id string) (models.Notification, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	for _, item := range n.s.notifications {
		if item.ID == id {
			return item, nil
		}
	}
	return models.Notification{}, fmt.Errorf("notification %s: %w", id, store.ErrNotFound)
}

func (n notificationStore) Create(ctx context.Context, item models.Notification) (models.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	item.ID = uuid.NewString()
	item.IsRead = false
	item.CreatedAt = n.s.now()
	n.s.notifications = append(n.s.notifications, item)
	return item, nil
}

func (n notificationStore) MarkRead(ctx context.Context, id string) (models.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for i := range n.s.notifications {
		if n.s.notifications[i].ID == id {
			n.s.notifications[i].IsRead = true
			return n.s.notifications[i], nil
		}
	}
	return models.Notification{}, fmt.Errorf("notification %s: %w", id, store.ErrNotFound)
}

func (n notificationStore) ListUnread(ctx context.Context) ([]models.Notification, error) {
	return n.filter(func(item models.Notification) bool { return !item.IsRead }), nil
}

func (n notificationStore) ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error) {
	return n.filter(func(item models.Notification) bool { return item.RecipientID == recipientID }), nil
}

func (n notificationStore) ListByEntity(ctx context.Context, entityID string, entityType string) ([]models.Notification, error) {
	return n.filter(func(item models.Notification) bool {
		return item.RelatedEntityID == entityID && item.RelatedEntityType == entityType
	}), nil
}

func (n notificationStore) filter(keep func(models.Notification) bool) []models.Notification {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	out := make([]models.Notification, 0, len(n.s.notifications))
	for _, item := range n.s.notifications {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

type activityStore struct{ s *Store }

func (a activityStore) List(ctx context.Context) ([]models.ActivityLogEntry, error) {
	return a.filter(func(models.ActivityLogEntry) bool { return true }), nil
}

func (a activityStore) Append(ctx context.Context, entry models.ActivityLogEntry) (models.ActivityLogEntry, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.Timestamp = a.s.now()
	a.s.activity = append(a.s.activity, entry)
	if over := len(a.s.activity) - a.s.activityLimit; over > 0 {
		a.s.activity = append(a.s.activity[:0:0], a.s.activity[over:]...)
	}
	return entry, nil
}

func (a activityStore) ListByType(ctx context.Context, typ string) ([]models.ActivityLogEntry, error) {
	return a.filter(func(e models.ActivityLogEntry) bool { return e.Type == typ }), nil
}

func (a activityStore) ListByEntity(ctx context.Context, entityID string, entityType string) ([]models.ActivityLogEntry, error) {
	return a.filter(func(e models.ActivityLogEntry) bool {
		return e.EntityID == entityID && e.EntityType == entityType
	}), nil
}

func (a activityStore) filter(keep func(models.ActivityLogEntry) bool) []models.ActivityLogEntry {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]models.ActivityLogEntry, 0, len(a.s.activity))
	for _, e := range a.s.activity {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
