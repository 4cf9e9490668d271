package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/notify"
	"frontdesk-queue-system/core/routing"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/workflow"
)

type RoutingResult struct {
	Ticket        models.Ticket `json:"ticket"`
	Category      string        `json:"category"`
	AssignedStaff *models.Staff `json:"assigned_staff,omitempty"`
}

type HandleUpdate struct {
	// Status defaults to in-progress.
	Status string `json:"status,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type Resolution struct {
	Notes              string `json:"notes"`
	SatisfactionRating *int   `json:"satisfaction_rating,omitempty" validate:"omitempty,min=1,max=5"`
	FeedbackRequested  bool   `json:"feedback_requested"`
}

type ResolutionResult struct {
	Ticket            models.Ticket `json:"ticket"`
	NotificationSent  bool          `json:"notification_sent"`
	FeedbackRequested bool          `json:"feedback_requested"`
}

// SubmitTicket records a new waiting ticket and tells the receptionist.
func (e *Engine) SubmitTicket(ctx context.Context, draft models.TicketDraft) (_ models.Ticket, err error) {
	ctx, span := e.startSpan(ctx, "SubmitTicket")
	defer func() { endSpan(span, err) }()

	draft = normalizeDraft(draft)
	if err := e.check(draft); err != nil {
		return models.Ticket{}, err
	}

	created, err := e.store.Tickets().Create(ctx, models.Ticket{
		Name:           draft.Name,
		Phone:          draft.Phone,
		Email:          draft.Email,
		Company:        draft.Company,
		PurposeOfVisit: draft.PurposeOfVisit,
		Priority:       draft.Priority,
		Notes:          draft.Notes,
		Status:         workflow.TicketStatusWaiting,
		CheckInTime:    e.now(),
	})
	if err != nil {
		return models.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}

	msg := fmt.Sprintf("Ticket %s created for %s", created.TicketNumber, created.Name)
	if err := e.notify(ctx, e.receptionist, "New Ticket Submitted", msg, created, created.Priority); err != nil {
		return models.Ticket{}, err
	}
	if err := e.publish(ctx, workflow.TicketEventSubmitted, created, "", "", e.receptionist); err != nil {
		return models.Ticket{}, err
	}

	metricsx.IncTicketSubmitted(string(created.Priority))
	e.logger.Info(ctx, "ticket_submitted", "ticket submitted",
		slog.String("ticket_id", created.ID),
		slog.String("ticket_number", created.TicketNumber),
		slog.String("priority", string(created.Priority)),
	)
	return created, nil
}

// CategorizeAndRoute always categorizes the ticket. With autoRoute set and
// no host yet, it assigns the first matching available staff member; the
// ticket stays waiting. No available staff leaves the ticket unrouted and is
// not an error.
func (e *Engine) CategorizeAndRoute(ctx context.Context, ticketID string, autoRoute bool) (_ RoutingResult, err error) {
	ctx, span := e.startSpan(ctx, "CategorizeAndRoute")
	defer func() { endSpan(span, err) }()

	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return RoutingResult{}, err
	}
	category := routing.Categorize(ticket.PurposeOfVisit)
	result := RoutingResult{Ticket: ticket, Category: category}

	if !autoRoute || ticket.Routed() {
		metricsx.IncTicketRouting("skipped")
		return result, nil
	}

	available, err := e.store.Staff().ListAvailable(ctx)
	if err != nil {
		return RoutingResult{}, fmt.Errorf("list available staff: %w", err)
	}
	staff, ok := routing.BestStaffMatch(category, available)
	if !ok {
		metricsx.IncTicketRouting("no_staff")
		e.logger.Info(ctx, "ticket_unrouted", "no staff available",
			slog.String("ticket_id", ticket.ID),
			slog.String("category", category),
		)
		return result, nil
	}

	routed, err := e.assign(ctx, ticket, staff, category, models.ActorAutoRouter,
		fmt.Sprintf("Ticket %s auto-routed to %s (%s)", ticket.TicketNumber, staff.Name, category))
	if err != nil {
		return RoutingResult{}, err
	}
	metricsx.IncTicketRouting("assigned")
	result.Ticket = routed
	result.AssignedStaff = &staff
	return result, nil
}

// AssignTicket routes a ticket to a chosen staff member.
func (e *Engine) AssignTicket(ctx context.Context, ticketID string, staffID string) (_ RoutingResult, err error) {
	ctx, span := e.startSpan(ctx, "AssignTicket")
	defer func() { endSpan(span, err) }()

	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return RoutingResult{}, err
	}
	if workflow.IsTerminal(ticket.Status) {
		return RoutingResult{}, fmt.Errorf("assign %s ticket %s: %w", ticket.Status, ticket.TicketNumber, ErrInvalidTransition)
	}
	staff, err := e.store.Staff().Get(ctx, staffID)
	if err != nil {
		return RoutingResult{}, fmt.Errorf("get staff: %w", err)
	}
	category := routing.Categorize(ticket.PurposeOfVisit)

	routed, err := e.assign(ctx, ticket, staff, category, e.receptionist,
		fmt.Sprintf("Ticket %s assigned to %s (%s)", ticket.TicketNumber, staff.Name, category))
	if err != nil {
		return RoutingResult{}, err
	}
	metricsx.IncTicketRouting("manual")
	return RoutingResult{Ticket: routed, Category: category, AssignedStaff: &staff}, nil
}

func (e *Engine) assign(ctx context.Context, ticket models.Ticket, staff models.Staff, category string, by models.Actor, description string) (models.Ticket, error) {
	routed, err := e.store.Tickets().Update(ctx, ticket.ID, models.TicketPatch{
		HostStaffID:     models.StringPtr(staff.ID),
		HostStaffName:   models.StringPtr(staff.Name),
		ExpectedVersion: models.Int64Ptr(ticket.Version),
	})
	if err != nil {
		return models.Ticket{}, fmt.Errorf("assign ticket: %w", err)
	}

	msg := fmt.Sprintf("You have been assigned ticket %s for %s", ticket.TicketNumber, ticket.Name)
	if err := e.notify(ctx, models.Actor{ID: staff.ID, Name: staff.Name}, "New Ticket Assigned", msg, ticket, ticket.Priority); err != nil {
		return models.Ticket{}, err
	}
	if err := e.record(ctx, models.ActivityTypeVisitor, models.ActionRouted, description, ticket, by); err != nil {
		return models.Ticket{}, err
	}
	if err := e.publish(ctx, workflow.TicketEventRouted, routed, ticket.Status, category, by); err != nil {
		return models.Ticket{}, err
	}

	e.logger.Info(ctx, "ticket_routed", "ticket assigned",
		slog.String("ticket_id", ticket.ID),
		slog.String("staff_id", staff.ID),
		slog.String("category", category),
		slog.String("performed_by", by.Name),
	)
	return routed, nil
}

// HandleTicket records staff work on a ticket. Repeating in-progress is
// allowed and logs and notifies again.
func (e *Engine) HandleTicket(ctx context.Context, ticketID string, staffID string, update HandleUpdate) (_ models.Ticket, err error) {
	ctx, span := e.startSpan(ctx, "HandleTicket")
	defer func() { endSpan(span, err) }()

	status := workflow.NormalizeTicketStatus(update.Status)
	if status == "" {
		status = workflow.TicketStatusInProgress
	}
	if !workflow.IsKnown(status) {
		return models.Ticket{}, invalidField("status", "oneof")
	}

	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !workflow.CanTransition(ticket.Status, status) {
		return models.Ticket{}, fmt.Errorf("ticket %s %s -> %s: %w", ticket.TicketNumber, ticket.Status, status, ErrInvalidTransition)
	}
	by, err := e.staffActor(ctx, staffID)
	if err != nil {
		return models.Ticket{}, err
	}

	patch := models.TicketPatch{
		Status:          models.StringPtr(status),
		ExpectedVersion: models.Int64Ptr(ticket.Version),
	}
	if notes := strings.TrimSpace(update.Notes); notes != "" {
		patch.Notes = models.StringPtr(appendNotes(ticket.Notes, notes))
	}
	if status == workflow.TicketStatusCompleted {
		patch.CheckOutTime = models.TimePtr(e.now())
	}
	updated, err := e.store.Tickets().Update(ctx, ticket.ID, patch)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("update ticket: %w", err)
	}

	desc := fmt.Sprintf("Ticket %s updated by %s - Status: %s", ticket.TicketNumber, by.Name, status)
	if err := e.record(ctx, models.ActivityTypeVisitor, models.ActionUpdated, desc, ticket, by); err != nil {
		return models.Ticket{}, err
	}
	if status == workflow.TicketStatusInProgress {
		msg := fmt.Sprintf("%s is now handling ticket %s", by.Name, ticket.TicketNumber)
		if err := e.notify(ctx, e.receptionist, "Ticket In Progress", msg, ticket, ticket.Priority); err != nil {
			return models.Ticket{}, err
		}
	}
	if err := e.publish(ctx, workflow.EventTypeForTransition(ticket.Status, status), updated, ticket.Status, "", by); err != nil {
		return models.Ticket{}, err
	}

	e.logger.Info(ctx, "ticket_handled", "ticket updated by staff",
		slog.String("ticket_id", ticket.ID),
		slog.String("staff_id", by.ID),
		slog.String("from_status", ticket.Status),
		slog.String("status", status),
	)
	return updated, nil
}

// ResolveTicket completes a waiting or in-progress ticket, appends the
// resolution to its notes and attempts to notify the customer. A failed
// customer notice is reported through NotificationSent, not as an error.
func (e *Engine) ResolveTicket(ctx context.Context, ticketID string, staffID string, res Resolution) (_ ResolutionResult, err error) {
	ctx, span := e.startSpan(ctx, "ResolveTicket")
	defer func() { endSpan(span, err) }()

	if err := e.check(res); err != nil {
		return ResolutionResult{}, err
	}
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return ResolutionResult{}, err
	}
	if !workflow.CanTransition(ticket.Status, workflow.TicketStatusCompleted) {
		return ResolutionResult{}, fmt.Errorf("resolve %s ticket %s: %w", ticket.Status, ticket.TicketNumber, ErrInvalidTransition)
	}
	by, err := e.staffActor(ctx, staffID)
	if err != nil {
		return ResolutionResult{}, err
	}

	resolved, err := e.store.Tickets().Update(ctx, ticket.ID, models.TicketPatch{
		Status:             models.StringPtr(workflow.TicketStatusCompleted),
		CheckOutTime:       models.TimePtr(e.now()),
		Notes:              models.StringPtr(appendLabeled(ticket.Notes, "Resolution", res.Notes)),
		SatisfactionRating: res.SatisfactionRating,
		ExpectedVersion:    models.Int64Ptr(ticket.Version),
	})
	if err != nil {
		return ResolutionResult{}, fmt.Errorf("resolve ticket: %w", err)
	}

	desc := fmt.Sprintf("Ticket %s resolved by %s", ticket.TicketNumber, by.Name)
	if err := e.record(ctx, models.ActivityTypeVisitor, models.ActionCompleted, desc, ticket, by); err != nil {
		return ResolutionResult{}, err
	}

	sent, err := e.noticeCustomer(ctx, resolved, res)
	if err != nil {
		return ResolutionResult{}, err
	}

	msg := fmt.Sprintf("Ticket %s for %s has been resolved", ticket.TicketNumber, ticket.Name)
	if err := e.notify(ctx, e.receptionist, "Ticket Resolved", msg, ticket, ticket.Priority); err != nil {
		return ResolutionResult{}, err
	}
	if err := e.publish(ctx, workflow.TicketEventCompleted, resolved, ticket.Status, "", by); err != nil {
		return ResolutionResult{}, err
	}

	if resolved.CheckOutTime != nil {
		metricsx.ObserveTicketWait(resolved.CheckOutTime.Sub(resolved.CheckInTime))
	}
	e.logger.Info(ctx, "ticket_resolved", "ticket resolved",
		slog.String("ticket_id", ticket.ID),
		slog.String("staff_id", by.ID),
		slog.Bool("notification_sent", sent),
		slog.Bool("feedback_requested", res.FeedbackRequested),
	)
	return ResolutionResult{Ticket: resolved, NotificationSent: sent, FeedbackRequested: res.FeedbackRequested}, nil
}

// noticeCustomer reports false when the sink rejects the notice. Only a
// failure to record the attempt is returned as an error.
func (e *Engine) noticeCustomer(ctx context.Context, t models.Ticket, res Resolution) (bool, error) {
	err := e.sink.NotifyCustomer(ctx, notify.CustomerNotice{
		TicketID:          t.ID,
		TicketNumber:      t.TicketNumber,
		CustomerName:      t.Name,
		Phone:             t.Phone,
		Email:             t.Email,
		ResolutionNotes:   res.Notes,
		FeedbackRequested: res.FeedbackRequested,
	})
	if err != nil {
		metricsx.IncCustomerNotice("failed")
		e.logFailure(ctx, "customer_notice_failed", err, slog.String("ticket_id", t.ID))
		return false, nil
	}
	metricsx.IncCustomerNotice("sent")

	desc := fmt.Sprintf("Resolution notification sent to %s", t.Name)
	if err := e.record(ctx, models.ActivityTypeSystem, models.ActionNotificationSent, desc, t, models.ActorNotificationService); err != nil {
		return true, err
	}
	return true, nil
}

// CancelTicket closes a waiting or in-progress ticket without service.
func (e *Engine) CancelTicket(ctx context.Context, ticketID string, staffID string, reason string) (_ models.Ticket, err error) {
	ctx, span := e.startSpan(ctx, "CancelTicket")
	defer func() { endSpan(span, err) }()

	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !workflow.CanTransition(ticket.Status, workflow.TicketStatusCancelled) {
		return models.Ticket{}, fmt.Errorf("cancel %s ticket %s: %w", ticket.Status, ticket.TicketNumber, ErrInvalidTransition)
	}
	by, err := e.staffActor(ctx, staffID)
	if err != nil {
		return models.Ticket{}, err
	}

	patch := models.TicketPatch{
		Status:          models.StringPtr(workflow.TicketStatusCancelled),
		ExpectedVersion: models.Int64Ptr(ticket.Version),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		patch.Notes = models.StringPtr(appendLabeled(ticket.Notes, "Cancellation", reason))
	}
	cancelled, err := e.store.Tickets().Update(ctx, ticket.ID, patch)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("cancel ticket: %w", err)
	}

	desc := fmt.Sprintf("Ticket %s cancelled by %s", ticket.TicketNumber, by.Name)
	if err := e.record(ctx, models.ActivityTypeVisitor, models.ActionCancelled, desc, ticket, by); err != nil {
		return models.Ticket{}, err
	}
	msg := fmt.Sprintf("Ticket %s for %s has been cancelled", ticket.TicketNumber, ticket.Name)
	if err := e.notify(ctx, e.receptionist, "Ticket Cancelled", msg, ticket, ticket.Priority); err != nil {
		return models.Ticket{}, err
	}
	if err := e.publish(ctx, workflow.TicketEventCancelled, cancelled, ticket.Status, "", by); err != nil {
		return models.Ticket{}, err
	}

	e.logger.Info(ctx, "ticket_cancelled", "ticket cancelled",
		slog.String("ticket_id", ticket.ID),
		slog.String("staff_id", by.ID),
	)
	return cancelled, nil
}

// appendNotes keeps prior notes verbatim and separates entries with a blank line.
func appendNotes(existing string, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}

func appendLabeled(existing string, label string, text string) string {
	return appendNotes(existing, label+": "+text)
}
