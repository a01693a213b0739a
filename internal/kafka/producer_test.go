package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/events"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestProducerDisabledWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, "support.events")
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Produce(context.Background(), events.Event{Type: events.EventTicketCreated}))
	assert.NoError(t, p.Close())
}

func TestProducerWritesKeyedMessage(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "support.events"}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Produce(context.Background(), events.Event{
		ID:         "e1",
		Type:       events.EventSessionClaimed,
		EntityType: "SupportChatSession",
		EntityID:   "s1",
		Timestamp:  ts,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "s1", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	assert.Equal(t, "support_session_claimed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "e1", decoded["id"])
	assert.Equal(t, "SupportChatSession", decoded["entity_type"])
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{writer: &recordingWriter{err: boom}}

	err := p.Produce(context.Background(), events.Event{Type: events.EventTicketCreated})
	assert.ErrorIs(t, err, boom)
}
