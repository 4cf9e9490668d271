package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

const AggregateTicket = "ticket"

const (
	TopicTicketEvents = "ticket.events"
	TopicStats        = "frontdesk.stats"
)

// TicketPayload is the body of every ticket lifecycle event.
type TicketPayload struct {
	TicketNumber string    `json:"ticket_number"`
	FromStatus   string    `json:"from_status,omitempty"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	Category     string    `json:"category,omitempty"`
	HostStaffID  string    `json:"host_staff_id,omitempty"`
	PerformedBy  string    `json:"performed_by,omitempty"`
	CheckInTime  time.Time `json:"check_in_time"`
	WaitSeconds  float64   `json:"wait_seconds,omitempty"`
	Satisfaction int       `json:"satisfaction_rating,omitempty"`
}

func NewTicketEnvelope(ticketID string, eventType string, occurredAt time.Time, payload TicketPayload) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.New(),
		OccurredAt:    occurredAt.UTC(),
		AggregateType: AggregateTicket,
		AggregateID:   ticketID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
