package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk-queue-system/shared/events"
)

type recordingWriter struct {
	err    error
	points []*write.Point
}

func (w *recordingWriter) WritePoints(_ context.Context, points ...*write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, points...)
	return nil
}

var occurred = time.Date(2026, 6, 1, 9, 10, 0, 0, time.UTC)

func completedMessage(t *testing.T) kafka.Message {
	t.Helper()
	env, err := events.NewTicketEnvelope("ticket-1", "ticket_completed", occurred, events.TicketPayload{
		TicketNumber: "V123456001",
		FromStatus:   "in-progress",
		Status:       "completed",
		Priority:     "high",
		Category:     "Technical Support",
		WaitSeconds:  600,
		Satisfaction: 5,
	})
	require.NoError(t, err)
	value, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{
		Value:   value,
		Headers: []kafka.Header{{Key: "aggregate_type", Value: []byte(events.AggregateTicket)}},
	}
}

func fieldMap(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagMap(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func TestHandleTicketEventWritesPoint(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, handleTicketEvent(context.Background(), w, completedMessage(t)))
	require.Len(t, w.points, 1)

	p := w.points[0]
	assert.Equal(t, measurementTicketEvents, p.Name())
	assert.True(t, occurred.Equal(p.Time()))
	assert.Equal(t, map[string]string{
		"event_type": "ticket_completed",
		"status":     "completed",
		"priority":   "high",
		"category":   "Technical Support",
	}, tagMap(p))
	fields := fieldMap(p)
	assert.Equal(t, 600.0, fields["wait_seconds"])
	assert.EqualValues(t, 5, fields["satisfaction_rating"])
	assert.Equal(t, "ticket-1", fields["ticket_id"])
}

func TestHandleTicketEventSkipsOtherAggregates(t *testing.T) {
	msg := completedMessage(t)
	msg.Headers = []kafka.Header{{Key: "aggregate_type", Value: []byte("staff")}}
	w := &recordingWriter{}

	assert.ErrorIs(t, handleTicketEvent(context.Background(), w, msg), errSkipped)
	assert.Empty(t, w.points)
}

func TestHandleTicketEventRejectsBadMessages(t *testing.T) {
	w := &recordingWriter{}
	assert.Error(t, handleTicketEvent(context.Background(), w, kafka.Message{Value: []byte("{")}))
	assert.Error(t, handleTicketEvent(context.Background(), w, kafka.Message{Value: []byte(`{"aggregate_type":"ticket"}`)}))
	assert.Empty(t, w.points)
}

func TestHandleTicketEventWriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("influx down")}
	err := handleTicketEvent(context.Background(), w, completedMessage(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errSkipped)
}

func TestHandleTicketEventWithoutInflux(t *testing.T) {
	assert.NoError(t, handleTicketEvent(context.Background(), nil, completedMessage(t)))
}
