package workflow

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{TicketStatusWaiting, TicketStatusInProgress, true},
		{TicketStatusWaiting, TicketStatusCompleted, true},
		{TicketStatusWaiting, TicketStatusCancelled, true},
		{TicketStatusInProgress, TicketStatusInProgress, true},
		{TicketStatusInProgress, TicketStatusCompleted, true},
		{TicketStatusInProgress, TicketStatusWaiting, false},
		{TicketStatusCompleted, TicketStatusInProgress, false},
		{TicketStatusCompleted, TicketStatusCompleted, false},
		{TicketStatusCancelled, TicketStatusWaiting, false},
		{"unknown", "unknown", false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEventTypeForTransition(t *testing.T) {
	if ev := EventTypeForTransition(TicketStatusWaiting, TicketStatusInProgress); ev != TicketEventStarted {
		t.Fatalf("expected %s, got %q", TicketEventStarted, ev)
	}
	if ev := EventTypeForTransition(TicketStatusInProgress, " In-Progress "); ev != TicketEventUpdated {
		t.Fatalf("expected %s for same-status write, got %q", TicketEventUpdated, ev)
	}
	if ev := EventTypeForTransition(TicketStatusCompleted, TicketStatusWaiting); ev != "" {
		t.Fatalf("expected no event out of a terminal status, got %q", ev)
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(TicketStatusCompleted) || !IsTerminal(TicketStatusCancelled) {
		t.Fatalf("completed and cancelled must be terminal")
	}
	if IsTerminal(TicketStatusWaiting) {
		t.Fatalf("waiting must not be terminal")
	}
}

func TestCanTransitionAppointment(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{AppointmentStatusScheduled, AppointmentStatusConfirmed, true},
		{AppointmentStatusScheduled, AppointmentStatusRescheduled, true},
		{AppointmentStatusConfirmed, AppointmentStatusInProgress, true},
		{AppointmentStatusRescheduled, AppointmentStatusRescheduled, true},
		{AppointmentStatusRescheduled, AppointmentStatusConfirmed, true},
		{AppointmentStatusInProgress, AppointmentStatusCompleted, true},
		{AppointmentStatusInProgress, AppointmentStatusRescheduled, false},
		{AppointmentStatusConfirmed, AppointmentStatusScheduled, false},
		{AppointmentStatusCompleted, AppointmentStatusCancelled, false},
		{AppointmentStatusCancelled, AppointmentStatusCancelled, false},
		{"unknown", "unknown", false},
	}
	for _, tc := range cases {
		if got := CanTransitionAppointment(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransitionAppointment(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
