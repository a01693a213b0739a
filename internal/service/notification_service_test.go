package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/observability"
)

type broadcastCall struct {
	group     string
	eventType string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, group, eventType string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{group: group, eventType: eventType})
	return f.err
}

type fakeProducer struct {
	mu       sync.Mutex
	produced []events.Event
}

func (f *fakeProducer) Produce(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.produced = append(f.produced, event)
	return nil
}

func TestAudienceGroups(t *testing.T) {
	groups := AudienceGroups(events.Audience{UserIDs: []string{"c1", "s1", "c1", ""}, Staff: true})
	assert.Equal(t, []string{"user:c1", "user:s1", "staff"}, groups)

	assert.Empty(t, AudienceGroups(events.Audience{}))
}

func TestNotificationFanOut(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	broadcaster := &fakeBroadcaster{}
	producer := &fakeProducer{}
	metrics := observability.NewMetrics()
	NewNotificationService(NotificationDependencies{
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
		Producer:    producer,
		Metrics:     metrics,
	}).RegisterHandlers()

	event := events.Event{
		ID:       "e-1",
		Type:     events.EventSessionOpened,
		Audience: events.Audience{UserIDs: []string{"c1"}, Staff: true},
	}
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	assert.Equal(t, []broadcastCall{
		{group: "user:c1", eventType: string(events.EventSessionOpened)},
		{group: "staff", eventType: string(events.EventSessionOpened)},
	}, broadcaster.calls)
	require.Len(t, producer.produced, 1)
	assert.Equal(t, "e-1", producer.produced[0].ID)
	assert.Equal(t, int64(1), metrics.Snapshot().Events[string(events.EventSessionOpened)])
}

func TestNotificationJoinsDeliveryErrors(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	boom := errors.New("boom")
	producer := &fakeProducer{}
	NewNotificationService(NotificationDependencies{
		Dispatcher:  dispatcher,
		Broadcaster: &fakeBroadcaster{err: boom},
		Producer:    producer,
	}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		Audience: events.Audience{UserIDs: []string{"c1"}},
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, producer.produced, 1)
}

func TestServiceEventsReachBroadcaster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := h.customer(t, "lan")

	_, err := h.sessions.OpenOrGet(ctx, customer, OpenSessionInput{InitialMessage: "xin chào"})
	require.NoError(t, err)

	opened := h.recorder.ofType(events.EventSessionOpened)
	require.Len(t, opened, 1)
	groups := AudienceGroups(opened[0].Audience)
	assert.Contains(t, groups, "user:"+customer.UserID)
	assert.Contains(t, groups, "staff")
	assert.NotEmpty(t, opened[0].ID)
	assert.False(t, opened[0].Timestamp.IsZero())
}
