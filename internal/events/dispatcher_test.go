package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToTypedAndWildcardHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var typed, all []EventType

	d.Subscribe(EventSessionClaimed, func(_ context.Context, e Event) error {
		typed = append(typed, e.Type)
		return nil
	})
	d.SubscribeAll(func(_ context.Context, e Event) error {
		all = append(all, e.Type)
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventSessionClaimed}))
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))

	assert.Equal(t, []EventType{EventSessionClaimed}, typed)
	assert.Equal(t, []EventType{EventSessionClaimed, EventTicketCreated}, all)
}

func TestDispatcherRunsEveryHandlerAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	first := errors.New("first")
	called := false

	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { return first })
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	assert.ErrorIs(t, err, first)
	assert.True(t, called)
}
