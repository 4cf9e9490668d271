package workflow

import "strings"

const (
	TicketStatusWaiting    = "waiting"
	TicketStatusInProgress = "in-progress"
	TicketStatusCompleted  = "completed"
	TicketStatusCancelled  = "cancelled"
)

const (
	TicketEventSubmitted = "ticket_submitted"
	TicketEventRouted    = "ticket_routed"
	TicketEventStarted   = "ticket_started"
	TicketEventUpdated   = "ticket_updated"
	TicketEventCompleted = "ticket_completed"
	TicketEventCancelled = "ticket_cancelled"
)

var ticketTransitions = map[string]map[string]string{
	TicketStatusWaiting: {
		TicketStatusInProgress: TicketEventStarted,
		TicketStatusCompleted:  TicketEventCompleted,
		TicketStatusCancelled:  TicketEventCancelled,
	},
	TicketStatusInProgress: {
		TicketStatusCompleted: TicketEventCompleted,
		TicketStatusCancelled: TicketEventCancelled,
	},
}

func NormalizeTicketStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// CanTransition reports whether a ticket may move from one status to another.
// Staying in a non-terminal status is allowed.
func CanTransition(fromStatus string, toStatus string) bool {
	fromStatus = NormalizeTicketStatus(fromStatus)
	toStatus = NormalizeTicketStatus(toStatus)
	if IsTerminal(fromStatus) {
		return false
	}
	if fromStatus == toStatus {
		return IsKnown(fromStatus)
	}
	next := ticketTransitions[fromStatus]
	if next == nil {
		return false
	}
	_, ok := next[toStatus]
	return ok
}

// EventTypeForTransition returns the domain event emitted by a status change.
// A same-status write is reported as an update.
func EventTypeForTransition(fromStatus string, toStatus string) string {
	fromStatus = NormalizeTicketStatus(fromStatus)
	toStatus = NormalizeTicketStatus(toStatus)
	if fromStatus == toStatus {
		if IsKnown(fromStatus) && !IsTerminal(fromStatus) {
			return TicketEventUpdated
		}
		return ""
	}
	next := ticketTransitions[fromStatus]
	if next == nil {
		return ""
	}
	return next[toStatus]
}

func IsTerminal(status string) bool {
	switch NormalizeTicketStatus(status) {
	case TicketStatusCompleted, TicketStatusCancelled:
		return true
	}
	return false
}

func IsKnown(status string) bool {
	for _, s := range AllTicketStatuses() {
		if s == NormalizeTicketStatus(status) {
			return true
		}
	}
	return false
}

func AllTicketStatuses() []string {
	return []string{
		TicketStatusWaiting,
		TicketStatusInProgress,
		TicketStatusCompleted,
		TicketStatusCancelled,
	}
}
