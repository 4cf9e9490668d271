// Package sample installs demo staff and visitors for local runs.
package sample

import (
	"context"
	"fmt"

	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/workflow"
)

var Staff = []models.Staff{
	{
		ID:                      "staff-1",
		Name:                    "Sarah Wilson",
		Email:                   "sarah.wilson@company.com",
		Phone:                   "+1 (555) 111-2222",
		Department:              "Sales",
		Position:                "Sales Manager",
		IsAvailable:             true,
		NotificationPreferences: models.NotificationPreferences{Email: true, SMS: true, Push: true},
	},
	{
		ID:                      "staff-2",
		Name:                    "John Smith",
		Email:                   "john.smith@company.com",
		Phone:                   "+1 (555) 222-3333",
		Department:              "IT",
		Position:                "IT Manager",
		IsAvailable:             true,
		NotificationPreferences: models.NotificationPreferences{Email: true, SMS: false, Push: true},
	},
}

var Visitors = []models.TicketDraft{
	{
		Name:           "Michael Johnson",
		Phone:          "+1 (555) 333-4444",
		Email:          "michael.j@email.com",
		Company:        "Tech Corp",
		PurposeOfVisit: "Sales consultation",
		Priority:       models.PriorityHigh,
		Notes:          "Interested in enterprise solutions",
	},
	{
		Name:           "Emily Davis",
		Phone:          "+1 (555) 444-5555",
		Email:          "emily.davis@email.com",
		Company:        "Digital Inc",
		PurposeOfVisit: "IT Technical Support",
		Priority:       models.PriorityUrgent,
		Notes:          "Server connectivity issues",
	},
}

type Result struct {
	StaffAdded    int
	VisitorsAdded int
}

// Seed adds the demo directory when no staff exist and the demo visitors
// when no ticket is waiting. It is safe to run on every start.
func Seed(ctx context.Context, s store.Store, eng *lifecycle.Engine) (Result, error) {
	var res Result

	existing, err := s.Staff().List(ctx)
	if err != nil {
		return res, fmt.Errorf("list staff: %w", err)
	}
	if len(existing) == 0 {
		for _, staff := range Staff {
			if _, err := s.Staff().Save(ctx, staff); err != nil {
				return res, fmt.Errorf("save staff %s: %w", staff.ID, err)
			}
			res.StaffAdded++
		}
	}

	waiting, err := s.Tickets().ListByStatus(ctx, workflow.TicketStatusWaiting)
	if err != nil {
		return res, fmt.Errorf("list waiting tickets: %w", err)
	}
	if len(waiting) == 0 {
		for _, draft := range Visitors {
			if _, err := eng.SubmitTicket(ctx, draft); err != nil {
				return res, fmt.Errorf("submit sample visitor %s: %w", draft.Name, err)
			}
			res.VisitorsAdded++
		}
	}
	return res, nil
}
