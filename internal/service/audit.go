package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/repository"
)

// Audit actions.
const (
	AuditSessionOpened      = "SUPPORT_SESSION_OPENED"
	AuditSessionClaimed     = "SUPPORT_SESSION_CLAIMED"
	AuditSessionUnassigned  = "SUPPORT_SESSION_UNASSIGNED"
	AuditSessionClosed      = "SUPPORT_SESSION_CLOSED"
	AuditSessionAssigned    = "SUPPORT_SESSION_ASSIGNED"
	AuditSessionTransferred = "SUPPORT_SESSION_TRANSFERRED"
	AuditTicketCreated      = "TICKET_CREATED"
	AuditTicketAssigned     = "TICKET_ASSIGNED"
	AuditTicketTransferred  = "TICKET_TRANSFERRED"
	AuditTicketCompleted    = "TICKET_COMPLETED"
	AuditTierCreated        = "PRIORITY_TIER_CREATED"
	AuditTierUpdated        = "PRIORITY_TIER_UPDATED"
	AuditTierToggled        = "PRIORITY_TIER_TOGGLED"
	AuditEmailVerified      = "USER_EMAIL_VERIFIED"
	AuditUserRegistered     = "USER_REGISTERED"
)

// AuditLogger writes audit rows for committed transitions. Failures are
// logged and never reach the caller.
type AuditLogger struct {
	repo   repository.AuditLogRepository
	clock  clock.Clock
	logger *zap.Logger
}

// NewAuditLogger builds the logger. A nil repo disables persistence.
func NewAuditLogger(repo repository.AuditLogRepository, clk clock.Clock, logger *zap.Logger) *AuditLogger {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{repo: repo, clock: clk, logger: logger}
}

// Log records one transition. Call it only after the transition committed.
func (a *AuditLogger) Log(ctx context.Context, actorID, action, entityType, entityID string, before, after map[string]any) {
	if a == nil || a.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		CreatedAt:  a.clock.Now(),
	}
	if err := a.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}
