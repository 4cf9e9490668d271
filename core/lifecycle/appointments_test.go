package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
)

func demoBooking(at time.Time) models.AppointmentDraft {
	return models.AppointmentDraft{
		VisitorName:  "  Jane Doe ",
		VisitorPhone: "555-0000",
		StaffID:      "staff-it",
		ScheduledAt:  at,
		Purpose:      "laptop handover",
	}
}

func TestScheduleAppointment(t *testing.T) {
	f := newFixture(t, itStaff())
	at := f.clock.now.Add(4 * time.Hour)

	appt, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(at))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", appt.VisitorName)
	assert.Equal(t, "John Smith", appt.StaffName)
	assert.Equal(t, "scheduled", appt.Status)
	assert.Equal(t, models.PriorityNormal, appt.Priority)
	assert.Equal(t, DefaultAppointmentMinutes, appt.DurationMinutes)
	assert.Equal(t, "receptionist-1", appt.CreatedBy)
	assert.Regexp(t, `^APT\d{9}$`, appt.AppointmentNumber)

	notes, err := f.store.Notifications().ListByRecipient(f.ctx, "staff-it")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "New Appointment Scheduled", notes[0].Title)
	assert.Equal(t, "Appointment with Jane Doe on Jun 1, 2026 13:00", notes[0].Message)
	assert.Equal(t, models.EntityTypeAppointment, notes[0].RelatedEntityType)

	trail, err := f.store.Activity().ListByEntity(f.ctx, appt.ID, models.EntityTypeAppointment)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.ActionCreated, trail[0].Action)
}

func TestScheduleAppointmentValidation(t *testing.T) {
	f := newFixture(t, itStaff())

	draft := demoBooking(time.Time{})
	_, err := f.engine.ScheduleAppointment(f.ctx, draft)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []FieldError{{Field: "scheduled_at", Rule: "required"}}, verr.Fields)

	draft = demoBooking(f.clock.now)
	draft.VisitorName = "   "
	draft.DurationMinutes = 1
	_, err = f.engine.ScheduleAppointment(f.ctx, draft)
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []FieldError{
		{Field: "visitor_name", Rule: "required"},
		{Field: "duration_minutes", Rule: "min"},
	}, verr.Fields)

	draft = demoBooking(f.clock.now)
	draft.StaffID = "nobody"
	_, err = f.engine.ScheduleAppointment(f.ctx, draft)
	require.ErrorIs(t, err, store.ErrNotFound)

	all, err := f.store.Appointments().List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMovingAppointmentMarksRescheduled(t *testing.T) {
	f := newFixture(t, itStaff())
	appt, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(f.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	later := appt.ScheduledAt.Add(24 * time.Hour)
	moved, err := f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{ScheduledAt: &later})
	require.NoError(t, err)
	assert.Equal(t, "rescheduled", moved.Status)
	assert.Equal(t, later, moved.ScheduledAt)
	assert.Equal(t, int64(2), moved.Version)

	confirmed, err := f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Status: "Confirmed", ConfirmationSent: models.BoolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.True(t, confirmed.ConfirmationSent)

	notes, err := f.store.Notifications().ListByEntity(f.ctx, appt.ID, models.EntityTypeAppointment)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Appointment Rescheduled", notes[1].Title)
	assert.Equal(t, "Appointment with Jane Doe moved to Jun 2, 2026 10:00", notes[1].Message)
}

func TestFinishedAppointmentsAreFinal(t *testing.T) {
	f := newFixture(t, itStaff())
	appt, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(f.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	cancelled, err := f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	_, err = f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Notes: models.StringPtr("too late")})
	require.ErrorIs(t, err, ErrInvalidTransition)

	notes, err := f.store.Notifications().ListByRecipient(f.ctx, "staff-it")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Appointment Cancelled", notes[1].Title)
}

func TestAppointmentTransitionRules(t *testing.T) {
	f := newFixture(t, itStaff())
	appt, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(f.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Status: "in-progress"})
	require.NoError(t, err)
	_, err = f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Status: "scheduled"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Status: "lunch"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAppointmentVersionCheck(t *testing.T) {
	f := newFixture(t, itStaff())
	appt, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(f.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Notes: models.StringPtr("first"), Version: models.Int64Ptr(appt.Version)})
	require.NoError(t, err)
	_, err = f.engine.UpdateAppointment(f.ctx, appt.ID, AppointmentUpdate{Notes: models.StringPtr("second"), Version: models.Int64Ptr(appt.Version)})
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := f.engine.GetAppointment(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Notes)
}

func TestListAppointmentsFilters(t *testing.T) {
	f := newFixture(t, itStaff(), salesStaff())
	today := f.clock.now

	late, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(today.Add(6*time.Hour)))
	require.NoError(t, err)
	early, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(today.Add(time.Hour)))
	require.NoError(t, err)
	sales := demoBooking(today.Add(48 * time.Hour))
	sales.StaffID = "staff-sales"
	other, err := f.engine.ScheduleAppointment(f.ctx, sales)
	require.NoError(t, err)

	all, err := f.engine.ListAppointments(f.ctx, AppointmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{early.ID, late.ID, other.ID}, appointmentIDs(all))

	todays, err := f.engine.ListAppointments(f.ctx, AppointmentFilter{Today: true})
	require.NoError(t, err)
	assert.Equal(t, []string{early.ID, late.ID}, appointmentIDs(todays))

	mine, err := f.engine.ListAppointments(f.ctx, AppointmentFilter{StaffID: "staff-sales"})
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, appointmentIDs(mine))

	onDay, err := f.engine.ListAppointments(f.ctx, AppointmentFilter{On: today.Add(48 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, appointmentIDs(onDay))
}

func TestDeleteAppointment(t *testing.T) {
	f := newFixture(t, itStaff())
	appt, err := f.engine.ScheduleAppointment(f.ctx, demoBooking(f.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteAppointment(f.ctx, appt.ID))
	_, err = f.engine.GetAppointment(f.ctx, appt.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, f.engine.DeleteAppointment(f.ctx, appt.ID), store.ErrNotFound)

	trail, err := f.store.Activity().ListByEntity(f.ctx, appt.ID, models.EntityTypeAppointment)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActionDeleted, trail[1].Action)
}

func appointmentIDs(appts []models.Appointment) []string {
	ids := make([]string, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	return ids
}
