package repos

import (
	"frontdesk-queue-system/core/store"
)

// Store serves the record store over Postgres.
type Store struct {
	tickets       *TicketsRepo
	appointments  *AppointmentsRepo
	staff         *StaffRepo
	notifications *NotificationsRepo
	activity      *ActivityRepo
}

func NewStore(db DBTX, opts ...Option) *Store {
	return &Store{
		tickets:       NewTicketsRepo(db, opts...),
		appointments:  NewAppointmentsRepo(db, opts...),
		staff:         NewStaffRepo(db),
		notifications: NewNotificationsRepo(db, opts...),
		activity:      NewActivityRepo(db, opts...),
	}
}

func (s *Store) Tickets() store.Tickets             { return s.tickets }
func (s *Store) Appointments() store.Appointments   { return s.appointments }
func (s *Store) Staff() store.Staff                 { return s.staff }
func (s *Store) Notifications() store.Notifications { return s.notifications }
func (s *Store) Activity() store.Activity           { return s.activity }

var (
	_ store.Store        = (*Store)(nil)
	_ store.Tickets      = (*TicketsRepo)(nil)
	_ store.Appointments = (*AppointmentsRepo)(nil)
)
