package mqx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk-queue-system/shared/config"
	"frontdesk-queue-system/shared/events"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishEnvelope(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w)
	env, err := events.NewTicketEnvelope("ticket-1", "ticket_routed", time.Now(), events.TicketPayload{TicketNumber: "V123456789"})
	require.NoError(t, err)

	require.NoError(t, p.PublishEnvelope(context.Background(), events.TopicTicketEvents, env))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, events.TopicTicketEvents, msg.Topic)
	assert.Equal(t, "ticket-1", string(msg.Key))
	assert.Equal(t, "ticket_routed", HeaderValue(msg, "event_type"))
	assert.Equal(t, env.EventID.String(), HeaderValue(msg, "event_id"))
	assert.Empty(t, HeaderValue(msg, "missing"))

	var decoded events.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, env.EventID, decoded.EventID)
}

func TestPublishPropagatesWriterError(t *testing.T) {
	p := NewProducerWithWriter(&recordingWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), "t", nil, []byte("{}"), nil)
	assert.EqualError(t, err, "broker down")

	var nilProducer *Producer
	assert.Error(t, nilProducer.Publish(context.Background(), "t", nil, nil, nil))
}

func TestConstructorsRequireBrokers(t *testing.T) {
	_, err := NewProducer(config.Config{})
	assert.Error(t, err)
	_, err = NewConsumer(config.Config{KafkaBrokers: []string{"localhost:9092"}}, "t", "")
	assert.Error(t, err)
}
