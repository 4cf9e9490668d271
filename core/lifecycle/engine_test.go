package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/notify"
	"frontdesk-queue-system/core/routing"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/core/store/memory"
	"frontdesk-queue-system/shared/events"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	engine *Engine
	clock  *clock
	events []events.Envelope
	sink   func(ctx context.Context, n notify.CustomerNotice) error
}

func newFixture(t *testing.T, staff ...models.Staff) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		clock: &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)},
		sink:  func(context.Context, notify.CustomerNotice) error { return nil },
	}
	f.store = memory.New(memory.WithClock(f.clock.Now))
	for _, s := range staff {
		_, err := f.store.Staff().Save(f.ctx, s)
		require.NoError(t, err)
	}
	f.engine = New(f.store,
		WithClock(f.clock.Now),
		WithPublisher(PublisherFunc(func(_ context.Context, env events.Envelope) error {
			f.events = append(f.events, env)
			return nil
		})),
		WithSink(notify.SinkFunc(func(ctx context.Context, n notify.CustomerNotice) error { return f.sink(ctx, n) })),
	)
	return f
}

func itStaff() models.Staff {
	return models.Staff{ID: "staff-it", Name: "John Smith", Department: "IT", IsAvailable: true}
}

func salesStaff() models.Staff {
	return models.Staff{ID: "staff-sales", Name: "Sarah Wilson", Department: "Sales", IsAvailable: true}
}

func (f *fixture) submit(t *testing.T, draft models.TicketDraft) models.Ticket {
	t.Helper()
	tk, err := f.engine.SubmitTicket(f.ctx, draft)
	require.NoError(t, err)
	return tk
}

func janeDoe() models.TicketDraft {
	return models.TicketDraft{Name: "Jane Doe", Phone: "555-0000", PurposeOfVisit: "technical support"}
}

func (f *fixture) eventTypes() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

func (f *fixture) assertCheckoutInvariant(t *testing.T) {
	t.Helper()
	all, err := f.store.Tickets().List(f.ctx)
	require.NoError(t, err)
	for _, tk := range all {
		assert.Equal(t, tk.Status == "completed", tk.CheckOutTime != nil, "ticket %s status %s", tk.TicketNumber, tk.Status)
	}
}

func TestEndToEndLifecycle(t *testing.T) {
	f := newFixture(t, itStaff())

	submitted := f.submit(t, janeDoe())
	assert.Equal(t, "waiting", submitted.Status)
	assert.Equal(t, models.PriorityNormal, submitted.Priority)
	assert.NotEmpty(t, submitted.TicketNumber)
	assert.Equal(t, f.clock.now, submitted.CheckInTime)

	routed, err := f.engine.CategorizeAndRoute(f.ctx, submitted.ID, true)
	require.NoError(t, err)
	assert.Equal(t, routing.CategoryTechnicalSupport, routed.Category)
	require.NotNil(t, routed.AssignedStaff)
	assert.Equal(t, "staff-it", routed.AssignedStaff.ID)
	assert.Equal(t, "waiting", routed.Ticket.Status)
	assert.Equal(t, "staff-it", routed.Ticket.HostStaffID)
	assert.Equal(t, "John Smith", routed.Ticket.HostStaffName)

	f.clock.Advance(10 * time.Minute)
	handled, err := f.engine.HandleTicket(f.ctx, submitted.ID, "staff-it", HandleUpdate{Status: "in-progress"})
	require.NoError(t, err)
	assert.Equal(t, "in-progress", handled.Status)
	assert.Nil(t, handled.CheckOutTime)

	f.clock.Advance(20 * time.Minute)
	res, err := f.engine.ResolveTicket(f.ctx, submitted.ID, "staff-it", Resolution{Notes: "resolved remotely"})
	require.NoError(t, err)
	assert.True(t, res.NotificationSent)
	assert.False(t, res.FeedbackRequested)
	assert.Equal(t, "completed", res.Ticket.Status)
	require.NotNil(t, res.Ticket.CheckOutTime)
	assert.Equal(t, f.clock.now, *res.Ticket.CheckOutTime)
	assert.Contains(t, res.Ticket.Notes, "resolved remotely")
	assert.Equal(t, submitted.TicketNumber, res.Ticket.TicketNumber)

	assert.Equal(t, []string{"ticket_submitted", "ticket_routed", "ticket_started", "ticket_completed"}, f.eventTypes())
	f.assertCheckoutInvariant(t)
}

func TestSubmitTicketNotifiesReceptionist(t *testing.T) {
	f := newFixture(t)
	tk := f.submit(t, models.TicketDraft{Name: " Jane Doe ", Phone: "555-0000", PurposeOfVisit: "billing", Priority: "URGENT"})
	assert.Equal(t, "Jane Doe", tk.Name)
	assert.Equal(t, models.PriorityUrgent, tk.Priority)

	notes, err := f.store.Notifications().ListByRecipient(f.ctx, "receptionist-1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "New Ticket Submitted", notes[0].Title)
	assert.Equal(t, "Ticket "+tk.TicketNumber+" created for Jane Doe", notes[0].Message)
	assert.Equal(t, models.PriorityUrgent, notes[0].Priority)
	assert.Equal(t, tk.ID, notes[0].RelatedEntityID)
	assert.Equal(t, "visitor", notes[0].RelatedEntityType)
	assert.False(t, notes[0].IsRead)

	activity, err := f.store.Activity().ListByEntity(f.ctx, tk.ID, "visitor")
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "created", activity[0].Action)
	assert.Equal(t, "New visitor Jane Doe checked in", activity[0].Description)
}

func TestSubmitTicketValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.SubmitTicket(f.ctx, models.TicketDraft{Name: "Jane", PurposeOfVisit: "   "})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, map[string]string{"phone": "required", "purpose_of_visit": "required"}, fields)

	_, err = f.engine.SubmitTicket(f.ctx, models.TicketDraft{Name: "Jane", Phone: "1", PurposeOfVisit: "x", Priority: "critical"})
	require.ErrorIs(t, err, ErrValidation)

	all, err := f.store.Tickets().List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTicketNumbersUniqueAcrossSession(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tk := f.submit(t, janeDoe())
		require.False(t, seen[tk.TicketNumber])
		seen[tk.TicketNumber] = true
	}
}

func TestCategorizeAndRouteWithoutAutoRoute(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, models.TicketDraft{Name: "Ann", Phone: "1", PurposeOfVisit: "Invoice question"})

	res, err := f.engine.CategorizeAndRoute(f.ctx, tk.ID, false)
	require.NoError(t, err)
	assert.Equal(t, routing.CategoryBilling, res.Category)
	assert.Nil(t, res.AssignedStaff)
	assert.Empty(t, res.Ticket.HostStaffID)
}

func TestCategorizeAndRouteNoStaff(t *testing.T) {
	f := newFixture(t)
	tk := f.submit(t, janeDoe())

	res, err := f.engine.CategorizeAndRoute(f.ctx, tk.ID, true)
	require.NoError(t, err)
	assert.Nil(t, res.AssignedStaff)

	got, err := f.store.Tickets().Get(f.ctx, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, got.HostStaffID)
	assert.Equal(t, "Submitted - Pending Routing", Stage(got))
}

func TestCategorizeAndRouteFallbackAndSideEffects(t *testing.T) {
	f := newFixture(t, salesStaff(), itStaff())
	tk := f.submit(t, models.TicketDraft{Name: "Ann", Phone: "1", PurposeOfVisit: "plumbing leak", Priority: models.PriorityHigh})

	res, err := f.engine.CategorizeAndRoute(f.ctx, tk.ID, true)
	require.NoError(t, err)
	assert.Equal(t, routing.CategoryGeneral, res.Category)
	require.NotNil(t, res.AssignedStaff)
	assert.Equal(t, "staff-sales", res.AssignedStaff.ID)

	staffNotes, err := f.store.Notifications().ListByRecipient(f.ctx, "staff-sales")
	require.NoError(t, err)
	require.Len(t, staffNotes, 1)
	assert.Equal(t, "New Ticket Assigned", staffNotes[0].Title)
	assert.Equal(t, "You have been assigned ticket "+tk.TicketNumber+" for Ann", staffNotes[0].Message)
	assert.Equal(t, models.PriorityHigh, staffNotes[0].Priority)

	routed, err := f.store.Activity().ListByType(f.ctx, "visitor")
	require.NoError(t, err)
	last := routed[len(routed)-1]
	assert.Equal(t, "routed", last.Action)
	assert.Equal(t, "system", last.PerformedBy)
	assert.Equal(t, "Auto-Router", last.PerformedByName)
	assert.Equal(t, "Ticket "+tk.TicketNumber+" auto-routed to Sarah Wilson (General)", last.Description)
}

func TestCategorizeAndRouteKeepsExistingHost(t *testing.T) {
	f := newFixture(t, salesStaff(), itStaff())
	tk := f.submit(t, janeDoe())
	_, err := f.engine.AssignTicket(f.ctx, tk.ID, "staff-sales")
	require.NoError(t, err)

	res, err := f.engine.CategorizeAndRoute(f.ctx, tk.ID, true)
	require.NoError(t, err)
	assert.Nil(t, res.AssignedStaff)
	assert.Equal(t, "staff-sales", res.Ticket.HostStaffID)
}

func TestCategorizeAndRouteMissingTicket(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CategorizeAndRoute(f.ctx, "missing", true)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssignTicket(t *testing.T) {
	f := newFixture(t, salesStaff())
	tk := f.submit(t, janeDoe())

	res, err := f.engine.AssignTicket(f.ctx, tk.ID, "staff-sales")
	require.NoError(t, err)
	assert.Equal(t, "staff-sales", res.Ticket.HostStaffID)
	assert.Equal(t, "waiting", res.Ticket.Status)

	activity, err := f.store.Activity().ListByEntity(f.ctx, tk.ID, "visitor")
	require.NoError(t, err)
	last := activity[len(activity)-1]
	assert.Equal(t, "routed", last.Action)
	assert.Equal(t, "receptionist-1", last.PerformedBy)

	_, err = f.engine.AssignTicket(f.ctx, tk.ID, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleTicketDefaultsAndNotes(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, models.TicketDraft{Name: "Ann", Phone: "1", PurposeOfVisit: "IT", Notes: "arrived early"})

	handled, err := f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{Notes: "checking laptop"})
	require.NoError(t, err)
	assert.Equal(t, "in-progress", handled.Status)
	assert.Equal(t, "arrived early\n\nchecking laptop", handled.Notes)

	// Repeating in-progress is legal and notifies again.
	_, err = f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{Status: "in-progress"})
	require.NoError(t, err)

	notes, err := f.store.Notifications().ListByRecipient(f.ctx, "receptionist-1")
	require.NoError(t, err)
	var progress []models.Notification
	for _, n := range notes {
		if n.Title == "Ticket In Progress" {
			progress = append(progress, n)
		}
	}
	require.Len(t, progress, 2)
	assert.Equal(t, "John Smith is now handling ticket "+tk.TicketNumber, progress[0].Message)

	activity, err := f.store.Activity().ListByEntity(f.ctx, tk.ID, "visitor")
	require.NoError(t, err)
	var handledBy []models.ActivityLogEntry
	for _, a := range activity {
		if a.PerformedBy == "staff-it" {
			handledBy = append(handledBy, a)
		}
	}
	require.Len(t, handledBy, 2)
	assert.Equal(t, "Ticket "+tk.TicketNumber+" updated by John Smith - Status: in-progress", handledBy[0].Description)
	assert.Equal(t, []string{"ticket_submitted", "ticket_started", "ticket_updated"}, f.eventTypes())
}

func TestHandleTicketUnknownStaffAndCompletion(t *testing.T) {
	f := newFixture(t)
	tk := f.submit(t, janeDoe())

	done, err := f.engine.HandleTicket(f.ctx, tk.ID, "temp-7", HandleUpdate{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)
	assert.NotNil(t, done.CheckOutTime)

	activity, err := f.store.Activity().ListByEntity(f.ctx, tk.ID, "visitor")
	require.NoError(t, err)
	last := activity[len(activity)-1]
	assert.Equal(t, "Staff", last.PerformedByName)
	f.assertCheckoutInvariant(t)
}

func TestHandleTicketRejections(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, janeDoe())

	_, err := f.engine.HandleTicket(f.ctx, "missing", "staff-it", HandleUpdate{})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{Status: "paused"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{})
	require.NoError(t, err)
	_, err = f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{Status: "waiting"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "done"})
	require.NoError(t, err)
	_, err = f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveTicketAccumulatesNotes(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, models.TicketDraft{Name: "Ann", Phone: "1", PurposeOfVisit: "IT", Notes: "initial note"})

	res, err := f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "fixed it", FeedbackRequested: true})
	require.NoError(t, err)
	assert.Equal(t, "initial note\n\nResolution: fixed it", res.Ticket.Notes)
	assert.True(t, res.FeedbackRequested)

	bare := f.submit(t, janeDoe())
	res, err = f.engine.ResolveTicket(f.ctx, bare.ID, "staff-it", Resolution{Notes: "fixed it"})
	require.NoError(t, err)
	assert.Equal(t, "Resolution: fixed it", res.Ticket.Notes)
}

func TestResolveTicketSideEffects(t *testing.T) {
	f := newFixture(t, itStaff())
	var notices []notify.CustomerNotice
	f.sink = func(_ context.Context, n notify.CustomerNotice) error {
		notices = append(notices, n)
		return nil
	}
	tk := f.submit(t, models.TicketDraft{Name: "Ann", Phone: "555-1111", PurposeOfVisit: "IT", Priority: models.PriorityHigh})
	rating := 4

	res, err := f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "swapped cable", SatisfactionRating: &rating, FeedbackRequested: true})
	require.NoError(t, err)
	require.NotNil(t, res.Ticket.SatisfactionRating)
	assert.Equal(t, 4, *res.Ticket.SatisfactionRating)

	require.Len(t, notices, 1)
	assert.Equal(t, "555-1111", notices[0].Phone)
	assert.Equal(t, "swapped cable", notices[0].ResolutionNotes)
	assert.True(t, notices[0].FeedbackRequested)

	system, err := f.store.Activity().ListByType(f.ctx, "system")
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "notification_sent", system[0].Action)
	assert.Equal(t, "Notification Service", system[0].PerformedByName)
	assert.Equal(t, "Resolution notification sent to Ann", system[0].Description)

	notes, err := f.store.Notifications().ListByRecipient(f.ctx, "receptionist-1")
	require.NoError(t, err)
	last := notes[len(notes)-1]
	assert.Equal(t, "Ticket Resolved", last.Title)
	assert.Equal(t, "Ticket "+tk.TicketNumber+" for Ann has been resolved", last.Message)
	assert.Equal(t, models.PriorityHigh, last.Priority)
}

func TestResolveTicketSinkFailure(t *testing.T) {
	f := newFixture(t, itStaff())
	f.sink = func(context.Context, notify.CustomerNotice) error { return errors.New("smtp down") }
	tk := f.submit(t, janeDoe())

	res, err := f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "ok"})
	require.NoError(t, err)
	assert.False(t, res.NotificationSent)
	assert.Equal(t, "completed", res.Ticket.Status)

	system, err := f.store.Activity().ListByType(f.ctx, "system")
	require.NoError(t, err)
	assert.Empty(t, system)
}

func TestResolveTicketRejections(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, janeDoe())

	bad := 9
	_, err := f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "x", SatisfactionRating: &bad})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.ResolveTicket(f.ctx, "missing", "staff-it", Resolution{Notes: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "x"})
	require.NoError(t, err)
	_, err = f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "again"})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelTicket(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, janeDoe())

	cancelled, err := f.engine.CancelTicket(f.ctx, tk.ID, "staff-it", "visitor left")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "Cancellation: visitor left", cancelled.Notes)
	assert.Nil(t, cancelled.CheckOutTime)

	_, err = f.engine.ResolveTicket(f.ctx, tk.ID, "staff-it", Resolution{Notes: "late"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.engine.CancelTicket(f.ctx, tk.ID, "staff-it", "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	status, err := f.engine.GetTicketStatus(f.ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", status.CurrentStage)
	assert.Equal(t, []string{"View cancellation reason"}, status.NextActions)
	f.assertCheckoutInvariant(t)
}

type staleTickets struct {
	store.Tickets
	snapshot models.Ticket
}

func (s staleTickets) Get(context.Context, string) (models.Ticket, error) { return s.snapshot, nil }

type staleStore struct {
	store.Store
	tickets store.Tickets
}

func (s staleStore) Tickets() store.Tickets { return s.tickets }

func TestConcurrentWriteSurfacesConflict(t *testing.T) {
	f := newFixture(t, itStaff())
	tk := f.submit(t, janeDoe())

	_, err := f.engine.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{Notes: "first writer"})
	require.NoError(t, err)

	stale := New(staleStore{Store: f.store, tickets: staleTickets{Tickets: f.store.Tickets(), snapshot: tk}})
	_, err = stale.HandleTicket(f.ctx, tk.ID, "staff-it", HandleUpdate{Notes: "second writer"})
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := f.store.Tickets().Get(f.ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "first writer", got.Notes)
}

type failingNotifications struct {
	store.Notifications
}

func (failingNotifications) Create(context.Context, models.Notification) (models.Notification, error) {
	return models.Notification{}, errors.New("disk full")
}

type failingNotifyStore struct{ store.Store }

func (s failingNotifyStore) Notifications() store.Notifications {
	return failingNotifications{s.Store.Notifications()}
}

func TestStoreFailureIsNotCompensated(t *testing.T) {
	s := memory.New()
	eng := New(failingNotifyStore{s})

	_, err := eng.SubmitTicket(context.Background(), janeDoe())
	require.Error(t, err)

	all, err := s.Tickets().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPublisherFailurePropagates(t *testing.T) {
	s := memory.New()
	eng := New(s, WithPublisher(PublisherFunc(func(context.Context, events.Envelope) error { return errors.New("outbox unavailable") })))
	_, err := eng.SubmitTicket(context.Background(), janeDoe())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")
}
