//go:build integration

package repos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/dbx"
	"frontdesk-queue-system/shared/workflow"
)

func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	_, err := dbx.Migrate(dbURL)
	require.NoError(t, err)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE tickets, appointments, staff, notifications, activity_log, outbox_events`)
	require.NoError(t, err)
	return pool
}

func TestPostgresTicketLifecycle(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	s := NewStore(pool)
	outbox := NewOutboxRepo(pool)

	_, err := s.Staff().Save(ctx, models.Staff{
		ID: "staff-it", Name: "John Smith", Department: "IT", IsAvailable: true,
		NotificationPreferences: models.NotificationPreferences{Email: true, Push: true},
	})
	require.NoError(t, err)

	engine := lifecycle.New(s, lifecycle.WithPublisher(NewOutboxPublisher(outbox, "")))
	ticket, err := engine.SubmitTicket(ctx, models.TicketDraft{
		Name: "Jane Doe", Phone: "555-0000", PurposeOfVisit: "technical support", Priority: models.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ticket.Version)

	routed, err := engine.CategorizeAndRoute(ctx, ticket.ID, true)
	require.NoError(t, err)
	require.NotNil(t, routed.AssignedStaff)
	assert.Equal(t, "staff-it", routed.Ticket.HostStaffID)

	_, err = engine.HandleTicket(ctx, ticket.ID, "staff-it", lifecycle.HandleUpdate{Notes: "looking"})
	require.NoError(t, err)
	rating := 4
	resolved, err := engine.ResolveTicket(ctx, ticket.ID, "staff-it", lifecycle.Resolution{Notes: "fixed", SatisfactionRating: &rating})
	require.NoError(t, err)
	assert.Equal(t, workflow.TicketStatusCompleted, resolved.Ticket.Status)
	require.NotNil(t, resolved.Ticket.CheckOutTime)
	assert.Equal(t, &rating, resolved.Ticket.SatisfactionRating)

	pending, err := outbox.CountByStatus(ctx, OutboxStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 4, pending)

	claimed, err := outbox.ClaimPending(ctx, "test", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 4)
	require.NoError(t, outbox.MarkDelivered(ctx, claimed[0].EventID))
	released, err := outbox.ReleaseStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), released)

	unread, err := s.Notifications().ListUnread(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, unread)
}

func TestPostgresOptimisticConflict(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	tickets := NewTicketsRepo(pool)

	created, err := tickets.Create(ctx, models.Ticket{
		Name: "Ann", Phone: "1", PurposeOfVisit: "sales", Priority: models.PriorityNormal,
		Status: workflow.TicketStatusWaiting, CheckInTime: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = tickets.Update(ctx, created.ID, models.TicketPatch{
		Notes:           models.StringPtr("first"),
		ExpectedVersion: models.Int64Ptr(created.Version),
	})
	require.NoError(t, err)

	_, err = tickets.Update(ctx, created.ID, models.TicketPatch{
		Notes:           models.StringPtr("second"),
		ExpectedVersion: models.Int64Ptr(created.Version),
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = tickets.Update(ctx, "missing", models.TicketPatch{ExpectedVersion: models.Int64Ptr(1)})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresAppointments(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	appts := NewAppointmentsRepo(pool)

	slot := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	created, err := appts.Create(ctx, models.Appointment{
		VisitorName: "Ann", VisitorPhone: "1", StaffID: "staff-it", StaffName: "John Smith",
		ScheduledAt: slot, DurationMinutes: 30, Purpose: "demo", Status: workflow.AppointmentStatusScheduled,
		Priority: models.PriorityNormal, CreatedBy: "receptionist-1",
	})
	require.NoError(t, err)
	assert.Equal(t, slot, created.ScheduledAt)

	moved := slot.Add(24 * time.Hour)
	updated, err := appts.Update(ctx, created.ID, models.AppointmentPatch{
		Status:          models.StringPtr(workflow.AppointmentStatusRescheduled),
		ScheduledAt:     &moved,
		ExpectedVersion: models.Int64Ptr(created.Version),
	})
	require.NoError(t, err)
	assert.Equal(t, moved, updated.ScheduledAt)
	assert.Equal(t, int64(2), updated.Version)

	byStaff, err := appts.ListByStaff(ctx, "staff-it")
	require.NoError(t, err)
	require.Len(t, byStaff, 1)

	require.NoError(t, appts.Delete(ctx, created.ID))
	_, err = appts.Get(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresActivityBound(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	activity := NewActivityRepo(pool, WithActivityLimit(3))

	for i := 0; i < 5; i++ {
		_, err := activity.Append(ctx, models.ActivityLogEntry{
			Type: models.ActivityTypeSystem, Action: models.ActionNotificationSent,
			Description: "entry", EntityID: "t-1", EntityType: models.EntityTypeVisitor,
		})
		require.NoError(t, err)
	}
	entries, err := activity.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
