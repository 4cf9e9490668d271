package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk-queue-system/api/internal/models"
	"frontdesk-queue-system/api/internal/repos"
	"frontdesk-queue-system/shared/events"
	"frontdesk-queue-system/shared/logx"
)

type failedMark struct {
	attempts  int
	nextRetry *time.Time
	dead      bool
}

type fakeOutbox struct {
	event     models.OutboxEvent
	delivered bool
	failed    []failedMark
}

func (f *fakeOutbox) GetByID(context.Context, uuid.UUID) (models.OutboxEvent, error) {
	return f.event, nil
}

func (f *fakeOutbox) MarkDelivered(context.Context, uuid.UUID) error {
	f.delivered = true
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, _ uuid.UUID, attempts int, nextRetryAt *time.Time, _ string, dead bool) error {
	f.failed = append(f.failed, failedMark{attempts: attempts, nextRetry: nextRetryAt, dead: dead})
	return nil
}

type fakeProducer struct {
	err    error
	topic  string
	events []events.Envelope
}

func (f *fakeProducer) PublishEnvelope(_ context.Context, topic string, env events.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.topic = topic
	f.events = append(f.events, env)
	return nil
}

var dispatchNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func pendingEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	env, err := events.NewTicketEnvelope("ticket-1", "ticket_submitted", dispatchNow, events.TicketPayload{
		TicketNumber: "V123456001",
		Status:       "waiting",
		Priority:     "normal",
	})
	require.NoError(t, err)
	payload, err := json.Marshal(env)
	require.NoError(t, err)
	return models.OutboxEvent{
		EventID:   env.EventID,
		EventType: env.EventType,
		Topic:     events.TopicTicketEvents,
		Payload:   payload,
		Status:    repos.OutboxStatusSending,
		Attempts:  attempts,
	}
}

func newDispatcher(outbox *fakeOutbox, producer *fakeProducer) dispatcher {
	return dispatcher{
		outbox:      outbox,
		producer:    producer,
		maxAttempts: 3,
		now:         func() time.Time { return dispatchNow },
		logger:      logx.Discard(),
	}
}

func TestDispatchDelivers(t *testing.T) {
	outbox := &fakeOutbox{event: pendingEvent(t, 0)}
	producer := &fakeProducer{}

	require.NoError(t, newDispatcher(outbox, producer).dispatch(context.Background(), outbox.event.EventID))
	assert.True(t, outbox.delivered)
	assert.Empty(t, outbox.failed)
	require.Len(t, producer.events, 1)
	assert.Equal(t, events.TopicTicketEvents, producer.topic)
	assert.Equal(t, "ticket-1", producer.events[0].AggregateID)
}

func TestDispatchSkipsFinishedRows(t *testing.T) {
	for _, status := range []string{repos.OutboxStatusDelivered, repos.OutboxStatusDead} {
		event := pendingEvent(t, 0)
		event.Status = status
		outbox := &fakeOutbox{event: event}
		producer := &fakeProducer{}

		require.NoError(t, newDispatcher(outbox, producer).dispatch(context.Background(), event.EventID))
		assert.Empty(t, producer.events, status)
		assert.False(t, outbox.delivered, status)
	}
}

func TestDispatchSchedulesRetry(t *testing.T) {
	outbox := &fakeOutbox{event: pendingEvent(t, 1)}
	producer := &fakeProducer{err: errors.New("broker down")}

	err := newDispatcher(outbox, producer).dispatch(context.Background(), outbox.event.EventID)
	require.Error(t, err)
	require.Len(t, outbox.failed, 1)
	assert.Equal(t, 2, outbox.failed[0].attempts)
	assert.False(t, outbox.failed[0].dead)
	require.NotNil(t, outbox.failed[0].nextRetry)
	assert.Equal(t, dispatchNow.Add(20*time.Second), *outbox.failed[0].nextRetry)
}

func TestDispatchParksDeadRows(t *testing.T) {
	outbox := &fakeOutbox{event: pendingEvent(t, 2)}
	producer := &fakeProducer{err: errors.New("broker down")}

	require.NoError(t, newDispatcher(outbox, producer).dispatch(context.Background(), outbox.event.EventID))
	require.Len(t, outbox.failed, 1)
	assert.True(t, outbox.failed[0].dead)
}

func TestDispatchParksPoisonPayload(t *testing.T) {
	event := pendingEvent(t, 0)
	event.Payload = []byte("not json")
	outbox := &fakeOutbox{event: event}
	producer := &fakeProducer{}

	require.NoError(t, newDispatcher(outbox, producer).dispatch(context.Background(), event.EventID))
	require.Len(t, outbox.failed, 1)
	assert.True(t, outbox.failed[0].dead)
	assert.Nil(t, outbox.failed[0].nextRetry)
	assert.Empty(t, producer.events)
}

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:  5 * time.Second,
		1:  5 * time.Second,
		2:  20 * time.Second,
		3:  45 * time.Second,
		7:  245 * time.Second,
		8:  5 * time.Minute,
		50: 5 * time.Minute,
	}
	for attempt, want := range cases {
		if got := retryDelay(attempt); got != want {
			t.Fatalf("retryDelay(%d) = %s, want %s", attempt, got, want)
		}
	}
}
