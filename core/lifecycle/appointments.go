package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/workflow"
)

const DefaultAppointmentMinutes = 30

const appointmentTimeLayout = "Jan 2, 2006 15:04"

// AppointmentUpdate changes a booked appointment. Nil fields are left alone.
// Moving ScheduledAt without a Status marks the appointment rescheduled.
type AppointmentUpdate struct {
	Status           string     `json:"status,omitempty" validate:"omitempty,oneof=scheduled confirmed in-progress completed cancelled rescheduled"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	DurationMinutes  *int       `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=480"`
	Location         *string    `json:"location,omitempty" validate:"omitempty,max=200"`
	MeetingRoom      *string    `json:"meeting_room,omitempty" validate:"omitempty,max=100"`
	Notes            *string    `json:"notes,omitempty"`
	ReminderSent     *bool      `json:"reminder_sent,omitempty"`
	ConfirmationSent *bool      `json:"confirmation_sent,omitempty"`
	// Version, when set, must match the stored version.
	Version *int64 `json:"version,omitempty"`
}

type AppointmentFilter struct {
	StaffID string
	// Today keeps appointments scheduled on the engine's current calendar day.
	Today bool
	// On keeps appointments scheduled on On's calendar day. Ignored when zero
	// or when Today is set.
	On time.Time
}

// ScheduleAppointment books a visit with an existing staff member and tells
// them about it.
func (e *Engine) ScheduleAppointment(ctx context.Context, draft models.AppointmentDraft) (_ models.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "ScheduleAppointment")
	defer func() { endSpan(span, err) }()

	draft = normalizeAppointmentDraft(draft)
	if err := e.check(draft); err != nil {
		return models.Appointment{}, err
	}
	if draft.ScheduledAt.IsZero() {
		return models.Appointment{}, invalidField("scheduled_at", "required")
	}
	staff, err := e.store.Staff().Get(ctx, draft.StaffID)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("get staff: %w", err)
	}

	created, err := e.store.Appointments().Create(ctx, models.Appointment{
		VisitorName:     draft.VisitorName,
		VisitorPhone:    draft.VisitorPhone,
		VisitorEmail:    draft.VisitorEmail,
		VisitorCompany:  draft.VisitorCompany,
		StaffID:         staff.ID,
		StaffName:       staff.Name,
		ScheduledAt:     draft.ScheduledAt.UTC(),
		DurationMinutes: draft.DurationMinutes,
		Purpose:         draft.Purpose,
		Location:        draft.Location,
		MeetingRoom:     draft.MeetingRoom,
		Status:          workflow.AppointmentStatusScheduled,
		Priority:        draft.Priority,
		Notes:           draft.Notes,
		CreatedBy:       e.receptionist.ID,
	})
	if err != nil {
		return models.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	msg := fmt.Sprintf("Appointment with %s on %s", created.VisitorName, e.formatSlot(created.ScheduledAt))
	host := models.Actor{ID: staff.ID, Name: staff.Name}
	if err := e.notifyAppointment(ctx, host, "New Appointment Scheduled", msg, created); err != nil {
		return models.Appointment{}, err
	}

	metricsx.IncAppointmentChange(created.Status)
	e.logger.Info(ctx, "appointment_scheduled", "appointment scheduled",
		slog.String("appointment_id", created.ID),
		slog.String("appointment_number", created.AppointmentNumber),
		slog.String("staff_id", created.StaffID),
		slog.Time("scheduled_at", created.ScheduledAt),
	)
	return created, nil
}

// UpdateAppointment applies upd under an optimistic version check. Completed
// and cancelled appointments are final. The staff member hears about
// cancellations and new times.
func (e *Engine) UpdateAppointment(ctx context.Context, id string, upd AppointmentUpdate) (_ models.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "UpdateAppointment")
	defer func() { endSpan(span, err) }()

	upd.Status = workflow.NormalizeTicketStatus(upd.Status)
	if err := e.check(upd); err != nil {
		return models.Appointment{}, err
	}
	current, err := e.GetAppointment(ctx, id)
	if err != nil {
		return models.Appointment{}, err
	}
	if workflow.IsTerminalAppointment(current.Status) {
		return models.Appointment{}, fmt.Errorf("update %s appointment %s: %w", current.Status, current.AppointmentNumber, ErrInvalidTransition)
	}

	status := upd.Status
	moved := upd.ScheduledAt != nil && !upd.ScheduledAt.Equal(current.ScheduledAt)
	if status == "" && moved {
		status = workflow.AppointmentStatusRescheduled
	}
	if status != "" && !workflow.CanTransitionAppointment(current.Status, status) {
		return models.Appointment{}, fmt.Errorf("appointment %s from %s to %s: %w", current.AppointmentNumber, current.Status, status, ErrInvalidTransition)
	}

	patch := models.AppointmentPatch{
		DurationMinutes:  upd.DurationMinutes,
		Location:         upd.Location,
		MeetingRoom:      upd.MeetingRoom,
		Notes:            upd.Notes,
		ReminderSent:     upd.ReminderSent,
		ConfirmationSent: upd.ConfirmationSent,
		ExpectedVersion:  models.Int64Ptr(current.Version),
	}
	if upd.Version != nil {
		patch.ExpectedVersion = upd.Version
	}
	if status != "" {
		patch.Status = &status
	}
	if moved {
		at := upd.ScheduledAt.UTC()
		patch.ScheduledAt = &at
	}

	updated, err := e.store.Appointments().Update(ctx, id, patch)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}

	if title, msg := appointmentChangeNotice(current, updated, e.formatSlot); title != "" {
		host, err := e.staffActor(ctx, updated.StaffID)
		if err != nil {
			return models.Appointment{}, err
		}
		if err := e.notifyAppointment(ctx, host, title, msg, updated); err != nil {
			return models.Appointment{}, err
		}
	}

	metricsx.IncAppointmentChange(updated.Status)
	e.logger.Info(ctx, "appointment_updated", "appointment updated",
		slog.String("appointment_id", updated.ID),
		slog.String("from_status", current.Status),
		slog.String("status", updated.Status),
		slog.Int64("version", updated.Version),
	)
	return updated, nil
}

func (e *Engine) DeleteAppointment(ctx context.Context, id string) (err error) {
	ctx, span := e.startSpan(ctx, "DeleteAppointment")
	defer func() { endSpan(span, err) }()

	appt, err := e.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.Appointments().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	_, err = e.store.Activity().Append(ctx, models.ActivityLogEntry{
		Type:            models.ActivityTypeAppointment,
		Action:          models.ActionDeleted,
		Description:     fmt.Sprintf("Appointment with %s deleted", appt.VisitorName),
		EntityID:        appt.ID,
		EntityType:      models.EntityTypeAppointment,
		PerformedBy:     e.receptionist.ID,
		PerformedByName: e.receptionist.Name,
	})
	if err != nil {
		return fmt.Errorf("append activity %s: %w", models.ActionDeleted, err)
	}
	metricsx.IncAppointmentChange(models.ActionDeleted)
	e.logger.Info(ctx, "appointment_deleted", "appointment deleted", slog.String("appointment_id", id))
	return nil
}

func (e *Engine) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	a, err := e.store.Appointments().Get(ctx, id)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// ListAppointments returns appointments ordered by scheduled time.
func (e *Engine) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	var (
		appts []models.Appointment
		err   error
	)
	if filter.StaffID != "" {
		appts, err = e.store.Appointments().ListByStaff(ctx, filter.StaffID)
	} else {
		appts, err = e.store.Appointments().List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	switch {
	case filter.Today:
		appts = store.AppointmentsOn(appts, e.now().In(e.location))
	case !filter.On.IsZero():
		appts = store.AppointmentsOn(appts, filter.On.In(e.location))
	}
	sort.SliceStable(appts, func(i, j int) bool { return appts[i].ScheduledAt.Before(appts[j].ScheduledAt) })
	return appts, nil
}

func (e *Engine) formatSlot(ts time.Time) string {
	return ts.In(e.location).Format(appointmentTimeLayout)
}

func (e *Engine) notifyAppointment(ctx context.Context, to models.Actor, title string, message string, a models.Appointment) error {
	_, err := e.store.Notifications().Create(ctx, models.Notification{
		Type:              models.NotificationTypeAppointment,
		Title:             title,
		Message:           message,
		RecipientID:       to.ID,
		RecipientName:     to.Name,
		RelatedEntityID:   a.ID,
		RelatedEntityType: models.EntityTypeAppointment,
		Priority:          a.Priority,
	})
	if err != nil {
		return fmt.Errorf("create notification %q: %w", title, err)
	}
	metricsx.IncNotificationCreated(title)
	return nil
}

func appointmentChangeNotice(before models.Appointment, after models.Appointment, format func(time.Time) string) (string, string) {
	switch {
	case after.Status == workflow.AppointmentStatusCancelled:
		return "Appointment Cancelled", fmt.Sprintf("Appointment with %s on %s was cancelled", after.VisitorName, format(after.ScheduledAt))
	case !after.ScheduledAt.Equal(before.ScheduledAt):
		return "Appointment Rescheduled", fmt.Sprintf("Appointment with %s moved to %s", after.VisitorName, format(after.ScheduledAt))
	}
	return "", ""
}

func normalizeAppointmentDraft(d models.AppointmentDraft) models.AppointmentDraft {
	d.VisitorName = strings.TrimSpace(d.VisitorName)
	d.VisitorPhone = strings.TrimSpace(d.VisitorPhone)
	d.VisitorEmail = strings.TrimSpace(d.VisitorEmail)
	d.VisitorCompany = strings.TrimSpace(d.VisitorCompany)
	d.StaffID = strings.TrimSpace(d.StaffID)
	d.Purpose = strings.TrimSpace(d.Purpose)
	d.Location = strings.TrimSpace(d.Location)
	d.MeetingRoom = strings.TrimSpace(d.MeetingRoom)
	d.Priority = models.ParsePriority(string(d.Priority))
	if d.Priority == "" {
		d.Priority = models.PriorityNormal
	}
	if d.DurationMinutes == 0 {
		d.DurationMinutes = DefaultAppointmentMinutes
	}
	return d
}
