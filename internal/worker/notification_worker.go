package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/kafka"
	"github.com/spec-kit/support-service/internal/service"
)

// ErrQueueFull is returned when the worker cannot accept more events.
var ErrQueueFull = errors.New("notification queue full")

// NotificationWorker produces events to Kafka off the request path. It
// satisfies kafka.EventProducer so the notification service can hand events
// over without waiting on the broker.
type NotificationWorker struct {
	producer kafka.EventProducer
	queue    chan events.Event
	logger   *zap.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewNotificationWorker builds a worker with a queue of size events.
func NewNotificationWorker(producer kafka.EventProducer, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		producer: producer,
		queue:    make(chan events.Event, size),
		logger:   logger,
	}
}

// Produce enqueues event without blocking.
func (w *NotificationWorker) Produce(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains what is
// already queued.
func (w *NotificationWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event := <-w.queue:
				w.deliver(ctx, event)
			case <-ctx.Done():
				w.drain()
				return
			}
		}
	}()
}

// Stop ends the loop, delivers what is still queued and waits for it.
func (w *NotificationWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.Wait()
}

// Wait blocks until the loop has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-w.queue:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.producer.Produce(context.WithoutCancel(ctx), event); err != nil {
		w.logger.Warn("event produce failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// StartNotificationWorker registers notification handlers and starts the
// delivery loop.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, w *NotificationWorker) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if w != nil {
		w.Start(ctx)
	}
}
