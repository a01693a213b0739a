package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// Entity names used in audit rows and events.
const (
	entitySession = "SupportChatSession"
	entityTicket  = "Ticket"
	entityUser    = "User"
)

// publisher emits domain events after commit. Handler failures are logged.
type publisher struct {
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

func newPublisher(dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger) publisher {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return publisher{dispatcher: dispatcher, clock: clk, logger: logger}
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock.Now()
	}
	if err := p.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.Warn("event delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
			zap.Error(err))
	}
}

// requireAuthenticated is checked before any entity lookup.
func requireAuthenticated(actor domain.Actor) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized(MsgUnauthenticated)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// notFoundOr maps the repository not-found sentinel to a NOT_FOUND error with
// message and passes every other error through.
func notFoundOr(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFoundMessage(message, nil)
	}
	return err
}

// loadActiveCareStaff resolves a handover candidate; anything but an active
// care-staff user is rejected with MsgInvalidStaff.
func loadActiveCareStaff(ctx context.Context, users repository.UserRepository, id string) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError(MsgInvalidStaff, map[string]any{"staff_id": id})
		}
		return nil, err
	}
	if !user.IsActiveCareStaff() {
		return nil, apperrors.NewValidationError(MsgInvalidStaff, map[string]any{"staff_id": id})
	}
	return user, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().Format(time.RFC3339Nano)
}
