package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Group names used for fan-out.
const StaffGroup = "staff"

// UserGroup is the group every connection of userID joins.
func UserGroup(userID string) string {
	return "user:" + userID
}

// Envelope is the message pushed to websocket clients and carried over Redis.
type Envelope struct {
	Group string          `json:"group"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// Broadcaster pushes a notification to a group of connections.
type Broadcaster interface {
	Broadcast(ctx context.Context, group, eventType string, data any) error
}

func newEnvelope(group, eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{Group: group, Type: eventType, Data: raw}, nil
}

// RedisBroadcaster publishes envelopes to a Redis channel so every service
// instance's hub can deliver them to its own connections.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster builds a broadcaster publishing to channel.
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, group, eventType string, data any) error {
	env, err := newEnvelope(group, eventType, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}
