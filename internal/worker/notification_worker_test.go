package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/events"
)

type stubProducer struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (p *stubProducer) Produce(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, event.ID)
	return p.err
}

func (p *stubProducer) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func TestWorkerDeliversQueuedEvents(t *testing.T) {
	producer := &stubProducer{}
	w := NewNotificationWorker(producer, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.NoError(t, w.Produce(ctx, events.Event{ID: "e1"}))
	require.NoError(t, w.Produce(ctx, events.Event{ID: "e2"}))

	assert.Eventually(t, func() bool { return len(producer.ids()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	w.Wait()
	assert.Equal(t, []string{"e1", "e2"}, producer.ids())
}

func TestWorkerRejectsWhenQueueFull(t *testing.T) {
	w := NewNotificationWorker(&stubProducer{}, 1, nil)

	require.NoError(t, w.Produce(context.Background(), events.Event{ID: "e1"}))
	assert.ErrorIs(t, w.Produce(context.Background(), events.Event{ID: "e2"}), ErrQueueFull)
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	producer := &stubProducer{err: errors.New("broker down")}
	w := NewNotificationWorker(producer, 4, nil)
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, w.Produce(context.Background(), events.Event{ID: id}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	w.Wait()

	assert.ElementsMatch(t, []string{"e1", "e2", "e3"}, producer.ids())
}

func TestWorkerKeepsDeliveringUntilStopped(t *testing.T) {
	producer := &stubProducer{}
	w := NewNotificationWorker(producer, 8, nil)
	serverCtx, shutdown := context.WithCancel(context.Background())
	w.Start(context.WithoutCancel(serverCtx))

	require.NoError(t, w.Produce(serverCtx, events.Event{ID: "before"}))
	shutdown()
	require.NoError(t, w.Produce(serverCtx, events.Event{ID: "during-drain"}))

	w.Stop()
	assert.ElementsMatch(t, []string{"before", "during-drain"}, producer.ids())
}
