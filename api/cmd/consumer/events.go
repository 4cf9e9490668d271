package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/segmentio/kafka-go"

	"frontdesk-queue-system/shared/events"
	"frontdesk-queue-system/shared/influxx"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/mqx"
)

const measurementTicketEvents = "ticket_events"

var errSkipped = errors.New("not a ticket event")

type pointWriter interface {
	WritePoints(ctx context.Context, points ...*write.Point) error
}

// handleTicketEvent turns one ticket.events message into an analytics point.
// Messages for other aggregates return errSkipped and should still be committed.
func handleTicketEvent(ctx context.Context, w pointWriter, msg kafka.Message) error {
	if at := mqx.HeaderValue(msg, "aggregate_type"); at != "" && at != events.AggregateTicket {
		return errSkipped
	}
	var env events.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == uuid.Nil || env.AggregateID == "" {
		return errors.New("missing event_id/aggregate_id")
	}
	if env.AggregateType != events.AggregateTicket {
		return errSkipped
	}
	point, err := ticketPoint(env)
	if err != nil {
		return err
	}
	if w == nil {
		return nil
	}
	if err := w.WritePoints(ctx, point); err != nil {
		metricsx.IncInfluxWriteFailure()
		return fmt.Errorf("write influx point: %w", err)
	}
	return nil
}

func ticketPoint(env events.Envelope) (*write.Point, error) {
	var payload events.TicketPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode ticket payload: %w", err)
	}
	tags := map[string]string{
		"event_type": env.EventType,
		"status":     payload.Status,
		"priority":   payload.Priority,
	}
	if payload.Category != "" {
		tags["category"] = payload.Category
	}
	fields := map[string]any{
		"ticket_id":     env.AggregateID,
		"ticket_number": payload.TicketNumber,
		"count":         1,
	}
	if payload.WaitSeconds > 0 {
		fields["wait_seconds"] = payload.WaitSeconds
	}
	if payload.Satisfaction > 0 {
		fields["satisfaction_rating"] = payload.Satisfaction
	}
	return influxx.NewPoint(measurementTicketEvents, tags, fields, env.OccurredAt), nil
}
