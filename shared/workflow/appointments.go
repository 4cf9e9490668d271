package workflow

const (
	AppointmentStatusScheduled   = "scheduled"
	AppointmentStatusConfirmed   = "confirmed"
	AppointmentStatusInProgress  = "in-progress"
	AppointmentStatusCompleted   = "completed"
	AppointmentStatusCancelled   = "cancelled"
	AppointmentStatusRescheduled = "rescheduled"
)

var appointmentTransitions = map[string][]string{
	AppointmentStatusScheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduled,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduled,
	},
	AppointmentStatusRescheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
	AppointmentStatusInProgress: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
}

// CanTransitionAppointment reports whether an appointment may move between
// statuses. Staying in a non-terminal status is allowed, so a rescheduled
// appointment can be moved again.
func CanTransitionAppointment(fromStatus string, toStatus string) bool {
	fromStatus = NormalizeTicketStatus(fromStatus)
	toStatus = NormalizeTicketStatus(toStatus)
	if IsTerminalAppointment(fromStatus) {
		return false
	}
	if fromStatus == toStatus {
		return IsKnownAppointmentStatus(fromStatus)
	}
	for _, next := range appointmentTransitions[fromStatus] {
		if next == toStatus {
			return true
		}
	}
	return false
}

func IsTerminalAppointment(status string) bool {
	switch NormalizeTicketStatus(status) {
	case AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

func IsKnownAppointmentStatus(status string) bool {
	status = NormalizeTicketStatus(status)
	for _, s := range AllAppointmentStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

func AllAppointmentStatuses() []string {
	return []string{
		AppointmentStatusScheduled,
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduled,
	}
}
