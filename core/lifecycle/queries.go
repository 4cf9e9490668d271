package lifecycle

import (
	"context"
	"fmt"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/routing"
	"frontdesk-queue-system/core/stats"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/workflow"
)

type TicketFilter struct {
	Status  string
	StaffID string
	// Today keeps tickets created on the engine's current calendar day.
	Today bool
}

func (e *Engine) ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	var (
		tickets []models.Ticket
		err     error
	)
	switch {
	case filter.Status != "":
		tickets, err = e.store.Tickets().ListByStatus(ctx, workflow.NormalizeTicketStatus(filter.Status))
	case filter.StaffID != "":
		tickets, err = e.store.Tickets().ListByStaff(ctx, filter.StaffID)
	default:
		tickets, err = e.store.Tickets().List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if filter.Status != "" && filter.StaffID != "" {
		tickets = keepTickets(tickets, func(t models.Ticket) bool { return t.HostStaffID == filter.StaffID })
	}
	if filter.Today {
		tickets = store.TicketsOn(tickets, e.now().In(e.location))
	}
	return tickets, nil
}

// Suggestions ranks waiting tickets against available staff for manual routing.
func (e *Engine) Suggestions(ctx context.Context) (_ []routing.Suggestion, err error) {
	ctx, span := e.startSpan(ctx, "Suggestions")
	defer func() { endSpan(span, err) }()

	waiting, err := e.store.Tickets().ListByStatus(ctx, workflow.TicketStatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("list waiting tickets: %w", err)
	}
	available, err := e.store.Staff().ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available staff: %w", err)
	}
	out := routing.Suggestions(waiting, available, e.suggestionLimit)
	metricsx.SetSuggestionsReturned(len(out))
	return out, nil
}

func (e *Engine) Stats(ctx context.Context) (stats.Snapshot, error) {
	tickets, err := e.store.Tickets().List(ctx)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("list tickets: %w", err)
	}
	appts, err := e.store.Appointments().List(ctx)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("list appointments: %w", err)
	}
	return stats.Compute(tickets, appts, e.now().In(e.location)), nil
}

func keepTickets(tickets []models.Ticket, keep func(models.Ticket) bool) []models.Ticket {
	out := tickets[:0]
	for _, t := range tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
