package store

import (
	"context"
	"fmt"

	"frontdesk-queue-system/core/models"
)

// WithAudit wraps s so every ticket and appointment create and update also
// appends an activity entry attributed to actor.
func WithAudit(s Store, actor models.Actor) Store {
	return auditedStore{Store: s, actor: actor}
}

type auditedStore struct {
	Store
	actor models.Actor
}

func (a auditedStore) Tickets() Tickets {
	return auditedTickets{Tickets: a.Store.Tickets(), activity: a.Store.Activity(), actor: a.actor}
}

func (a auditedStore) Appointments() Appointments {
	return auditedAppointments{Appointments: a.Store.Appointments(), activity: a.Store.Activity(), actor: a.actor}
}

type auditedTickets struct {
	Tickets
	activity Activity
	actor    models.Actor
}

func (a auditedTickets) Create(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	created, err := a.Tickets.Create(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := a.record(ctx, created.ID, models.ActionCreated, fmt.Sprintf("New visitor %s checked in", created.Name)); err != nil {
		return created, err
	}
	return created, nil
}

func (a auditedTickets) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	updated, err := a.Tickets.Update(ctx, id, patch)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := a.record(ctx, id, models.ActionUpdated, fmt.Sprintf("Visitor %s status updated to %s", updated.Name, updated.Status)); err != nil {
		return updated, err
	}
	return updated, nil
}

func (a auditedTickets) record(ctx context.Context, ticketID string, action string, description string) error {
	_, err := a.activity.Append(ctx, models.ActivityLogEntry{
		Type:            models.ActivityTypeVisitor,
		Action:          action,
		Description:     description,
		EntityID:        ticketID,
		EntityType:      models.EntityTypeVisitor,
		PerformedBy:     a.actor.ID,
		PerformedByName: a.actor.Name,
	})
	if err != nil {
		return fmt.Errorf("audit ticket %s: %w", action, err)
	}
	return nil
}

type auditedAppointments struct {
	Appointments
	activity Activity
	actor    models.Actor
}

func (a auditedAppointments) Create(ctx context.Context, appt models.Appointment) (models.Appointment, error) {
	created, err := a.Appointments.Create(ctx, appt)
	if err != nil {
		return models.Appointment{}, err
	}
	if err := a.record(ctx, created.ID, models.ActionCreated, fmt.Sprintf("Appointment scheduled with %s", created.VisitorName)); err != nil {
		return created, err
	}
	return created, nil
}

func (a auditedAppointments) Update(ctx context.Context, id string, patch models.AppointmentPatch) (models.Appointment, error) {
	updated, err := a.Appointments.Update(ctx, id, patch)
	if err != nil {
		return models.Appointment{}, err
	}
	if err := a.record(ctx, id, models.ActionUpdated, fmt.Sprintf("Appointment with %s updated to %s", updated.VisitorName, updated.Status)); err != nil {
		return updated, err
	}
	return updated, nil
}

func (a auditedAppointments) record(ctx context.Context, apptID string, action string, description string) error {
	_, err := a.activity.Append(ctx, models.ActivityLogEntry{
		Type:            models.ActivityTypeAppointment,
		Action:          action,
		Description:     description,
		EntityID:        apptID,
		EntityType:      models.EntityTypeAppointment,
		PerformedBy:     a.actor.ID,
		PerformedByName: a.actor.Name,
	})
	if err != nil {
		return fmt.Errorf("audit appointment %s: %w", action, err)
	}
	return nil
}
