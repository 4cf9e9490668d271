// Package stats derives the front desk dashboard figures from ticket and
// appointment records.
package stats

import (
	"fmt"
	"math"
	"time"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/workflow"
)

const (
	serviceShare    = 0.6
	defaultPeakHour = 9
)

type TicketCounts struct {
	Total      int `json:"total"`
	Waiting    int `json:"waiting"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

// AppointmentCounts covers appointments scheduled for the day. Scheduled
// includes confirmed appointments.
type AppointmentCounts struct {
	Total       int `json:"total"`
	Scheduled   int `json:"scheduled"`
	InProgress  int `json:"in_progress"`
	Completed   int `json:"completed"`
	Cancelled   int `json:"cancelled"`
	Rescheduled int `json:"rescheduled"`
}

type Snapshot struct {
	GeneratedAt          time.Time         `json:"generated_at"`
	Today                TicketCounts      `json:"today"`
	Appointments         AppointmentCounts `json:"appointments"`
	AvgWaitMinutes       int               `json:"avg_wait_minutes"`
	AvgServiceMinutes    int               `json:"avg_service_minutes"`
	PeakHour             string            `json:"peak_hour"`
	CustomerSatisfaction float64           `json:"customer_satisfaction"`
	RatedTickets         int               `json:"rated_tickets"`
}

// Compute summarises the tickets created and the appointments scheduled on
// now's calendar day. Day and hour boundaries follow now's location.
func Compute(tickets []models.Ticket, appointments []models.Appointment, now time.Time) Snapshot {
	today := store.TicketsOn(tickets, now)
	wait := avgWaitMinutes(today)
	score, rated := satisfaction(today)
	return Snapshot{
		GeneratedAt:          now,
		Today:                count(today),
		Appointments:         countAppointments(store.AppointmentsOn(appointments, now)),
		AvgWaitMinutes:       wait,
		AvgServiceMinutes:    int(math.Floor(float64(wait) * serviceShare)),
		PeakHour:             peakHour(today, now.Location()),
		CustomerSatisfaction: score,
		RatedTickets:         rated,
	}
}

func count(tickets []models.Ticket) TicketCounts {
	c := TicketCounts{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case workflow.TicketStatusWaiting:
			c.Waiting++
		case workflow.TicketStatusInProgress:
			c.InProgress++
		case workflow.TicketStatusCompleted:
			c.Completed++
		case workflow.TicketStatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

func countAppointments(appts []models.Appointment) AppointmentCounts {
	c := AppointmentCounts{Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case workflow.AppointmentStatusScheduled, workflow.AppointmentStatusConfirmed:
			c.Scheduled++
		case workflow.AppointmentStatusInProgress:
			c.InProgress++
		case workflow.AppointmentStatusCompleted:
			c.Completed++
		case workflow.AppointmentStatusCancelled:
			c.Cancelled++
		case workflow.AppointmentStatusRescheduled:
			c.Rescheduled++
		}
	}
	return c
}

func avgWaitMinutes(tickets []models.Ticket) int {
	var total time.Duration
	n := 0
	for _, t := range tickets {
		if t.Status != workflow.TicketStatusCompleted || t.CheckOutTime == nil {
			continue
		}
		total += t.CheckOutTime.Sub(t.CheckInTime)
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Floor(total.Minutes() / float64(n)))
}

// peakHour reports the check-in hour with the most visitors. Ties go to the
// earlier hour.
func peakHour(tickets []models.Ticket, loc *time.Location) string {
	var counts [24]int
	for _, t := range tickets {
		counts[t.CheckInTime.In(loc).Hour()]++
	}
	peak, best := defaultPeakHour, 0
	for hour, n := range counts {
		if n > best {
			peak, best = hour, n
		}
	}
	return fmt.Sprintf("%s - %s", FormatHour(peak), FormatHour((peak+1)%24))
}

// FormatHour renders a 24h hour as "9:00 AM" / "12:00 PM".
func FormatHour(hour int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour
	switch {
	case hour > 12:
		display = hour - 12
	case hour == 0:
		display = 12
	}
	return fmt.Sprintf("%d:00 %s", display, period)
}

func satisfaction(tickets []models.Ticket) (float64, int) {
	sum, n := 0, 0
	for _, t := range tickets {
		if t.SatisfactionRating == nil {
			continue
		}
		sum += *t.SatisfactionRating
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return math.Round(float64(sum)/float64(n)*10) / 10, n
}
