package lifecycle

import (
	"context"
	"fmt"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/routing"
	"frontdesk-queue-system/shared/workflow"
)

const (
	statusActivityWindow     = 5
	statusNotificationWindow = 3
)

type StatusProjection struct {
	Ticket        models.Ticket             `json:"ticket"`
	Category      string                    `json:"category"`
	CurrentStage  string                    `json:"current_stage"`
	Activities    []models.ActivityLogEntry `json:"activities"`
	Notifications []models.Notification     `json:"notifications"`
	NextActions   []string                  `json:"next_actions"`
}

// GetTicketStatus is read-only: the ticket with its latest activity and
// notifications and the display stage derived from status and routing.
func (e *Engine) GetTicketStatus(ctx context.Context, ticketID string) (_ StatusProjection, err error) {
	ctx, span := e.startSpan(ctx, "GetTicketStatus")
	defer func() { endSpan(span, err) }()

	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return StatusProjection{}, err
	}
	activities, err := e.store.Activity().ListByEntity(ctx, ticket.ID, models.EntityTypeVisitor)
	if err != nil {
		return StatusProjection{}, fmt.Errorf("list activity: %w", err)
	}
	notifications, err := e.store.Notifications().ListByEntity(ctx, ticket.ID, models.EntityTypeVisitor)
	if err != nil {
		return StatusProjection{}, fmt.Errorf("list notifications: %w", err)
	}

	return StatusProjection{
		Ticket:        ticket,
		Category:      routing.Categorize(ticket.PurposeOfVisit),
		CurrentStage:  Stage(ticket),
		Activities:    lastN(activities, statusActivityWindow),
		Notifications: lastN(notifications, statusNotificationWindow),
		NextActions:   NextActions(ticket),
	}, nil
}

func Stage(t models.Ticket) string {
	switch t.Status {
	case workflow.TicketStatusWaiting:
		if t.Routed() {
			return "Routed - Awaiting Staff"
		}
		return "Submitted - Pending Routing"
	case workflow.TicketStatusInProgress:
		return "Being Handled by Staff"
	case workflow.TicketStatusCompleted:
		return "Resolved and Closed"
	case workflow.TicketStatusCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

func NextActions(t models.Ticket) []string {
	switch t.Status {
	case workflow.TicketStatusWaiting:
		if t.Routed() {
			return []string{"Notify assigned staff", "Change assignment"}
		}
		return []string{"Assign to staff member", "Auto-route to available staff"}
	case workflow.TicketStatusInProgress:
		return []string{"Add progress notes", "Update status", "Resolve ticket"}
	case workflow.TicketStatusCompleted:
		return []string{"Request feedback", "View resolution details"}
	case workflow.TicketStatusCancelled:
		return []string{"View cancellation reason"}
	}
	return []string{}
}

func lastN[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
