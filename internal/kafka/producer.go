package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/spec-kit/support-service/internal/events"
)

// EventProducer streams domain events to Kafka.
type EventProducer interface {
	Produce(ctx context.Context, event events.Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes domain events to a topic. Without brokers every call is a no-op.
type Producer struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// NewProducer creates the producer. Empty brokers or topic disable it.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic:   topic,
		timeout: 2 * time.Second,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether brokers were configured.
func (p *Producer) Enabled() bool {
	return p != nil && p.writer != nil
}

// Produce writes the event keyed by its entity id, so events for one session
// or ticket stay ordered within a partition.
func (p *Producer) Produce(ctx context.Context, event events.Event) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", event.Type, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(event.EntityID),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "entity_type", Value: []byte(event.EntityType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
