package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/kafka"
	"github.com/spec-kit/support-service/internal/observability"
	"github.com/spec-kit/support-service/internal/realtime"
)

// NotificationService fans committed domain events out to realtime groups
// and to the event stream.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster realtime.Broadcaster
	producer    kafka.EventProducer
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NotificationDependencies bundles the delivery channels. Nil channels are skipped.
type NotificationDependencies struct {
	Dispatcher  events.Dispatcher
	Broadcaster realtime.Broadcaster
	Producer    kafka.EventProducer
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  deps.Dispatcher,
		broadcaster: deps.Broadcaster,
		producer:    deps.Producer,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handleEvent)
	n.dispatcher.Subscribe(events.EventEmailVerificationSent, n.handleEmailVerification)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent(string(event.Type))
	n.logger.Debug("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("entity_type", event.EntityType),
		zap.String("entity_id", event.EntityID))

	var errs []error
	if n.broadcaster != nil {
		for _, group := range AudienceGroups(event.Audience) {
			if err := n.broadcaster.Broadcast(ctx, group, string(event.Type), event); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if n.producer != nil {
		if err := n.producer.Produce(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handleEmailVerification stands in for the mail channel.
func (n *NotificationService) handleEmailVerification(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EmailVerificationPayload)
	if !ok {
		return nil
	}
	n.logger.Info("email verification requested",
		zap.String("user_id", payload.UserID),
		zap.String("email", payload.Email),
		zap.Time("expires_at", payload.ExpiresAt))
	n.logger.Debug("email verification token", zap.String("token", payload.Token))
	return nil
}

// AudienceGroups maps an audience onto realtime group names without duplicates.
func AudienceGroups(audience events.Audience) []string {
	groups := make([]string, 0, len(audience.UserIDs)+1)
	seen := make(map[string]struct{}, len(audience.UserIDs)+1)
	add := func(group string) {
		if _, ok := seen[group]; ok {
			return
		}
		seen[group] = struct{}{}
		groups = append(groups, group)
	}
	for _, id := range audience.UserIDs {
		if id != "" {
			add(realtime.UserGroup(id))
		}
	}
	if audience.Staff {
		add(realtime.StaffGroup)
	}
	return groups
}
