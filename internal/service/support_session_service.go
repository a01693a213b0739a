package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

const (
	maxMessageLength  = 2000
	defaultPreviewMax = 255
)

// SupportSessionService runs the support chat session state machine.
type SupportSessionService struct {
	tx         repository.TxManager
	sessions   repository.ChatSessionRepository
	messages   repository.ChatMessageRepository
	users      repository.UserRepository
	audit      *AuditLogger
	events     publisher
	clock      clock.Clock
	previewMax int
}

// SupportSessionDependencies bundles collaborators for the session service.
type SupportSessionDependencies struct {
	TxManager   repository.TxManager
	SessionRepo repository.ChatSessionRepository
	MessageRepo repository.ChatMessageRepository
	UserRepo    repository.UserRepository
	Audit       *AuditLogger
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
	PreviewMax  int
}

// NewSupportSessionService constructs the service.
func NewSupportSessionService(deps SupportSessionDependencies) *SupportSessionService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	previewMax := deps.PreviewMax
	if previewMax <= 0 {
		previewMax = defaultPreviewMax
	}
	return &SupportSessionService{
		tx:         deps.TxManager,
		sessions:   deps.SessionRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		audit:      deps.Audit,
		events:     newPublisher(deps.Dispatcher, clk, deps.Logger),
		clock:      clk,
		previewMax: previewMax,
	}
}

// OpenSessionInput is the OpenOrGet request.
type OpenSessionInput struct {
	InitialMessage string
	PriorityLevel  int
}

// OpenSessionResult describes the reused or created session.
type OpenSessionResult struct {
	Session                  *domain.SupportChatSession
	Message                  *domain.SupportChatMessage
	Created                  bool
	HasPreviousClosedSession bool
	LastClosedSessionID      *string
	LastClosedAt             *time.Time
}

// OpenOrGet reuses the caller's open session or starts a new Waiting one.
func (s *SupportSessionService) OpenOrGet(ctx context.Context, actor domain.Actor, input OpenSessionInput) (*OpenSessionResult, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.InitialMessage)
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperrors.NewValidationError(MsgMessageTooLong, map[string]any{"max": maxMessageLength})
	}
	priority := domain.NormalizePriority(input.PriorityLevel)

	result := &OpenSessionResult{}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		session, err := s.sessions.FindOpenByCustomer(ctx, actor.UserID)
		switch {
		case err == nil:
			result.Session = session
		case isNoRows(err):
			session = &domain.SupportChatSession{
				CustomerID:    actor.UserID,
				Assignment:    domain.SessionUnassigned(),
				Status:        domain.SessionStatusWaiting,
				PriorityLevel: priority,
				StartedAt:     now,
			}
			if content != "" {
				session.RecordMessage(content, now, s.previewMax)
			}
			if err := s.sessions.Create(ctx, session); err != nil {
				return err
			}
			result.Session = session
			result.Created = true

			last, err := s.sessions.FindLatestClosedByCustomer(ctx, actor.UserID)
			if err != nil && !isNoRows(err) {
				return err
			}
			if last != nil {
				result.HasPreviousClosedSession = true
				result.LastClosedSessionID = &last.ID
				result.LastClosedAt = last.ClosedAt
			}
		default:
			return err
		}

		if content == "" {
			return nil
		}
		message := &domain.SupportChatMessage{
			ChatSessionID: session.ID,
			SenderID:      actor.UserID,
			IsFromStaff:   false,
			Content:       content,
			CreatedAt:     now,
		}
		if err := s.messages.Create(ctx, message); err != nil {
			return err
		}
		result.Message = message
		if !result.Created {
			session.RecordMessage(content, now, s.previewMax)
			return s.sessions.Update(ctx, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session := result.Session
	if result.Created {
		s.audit.Log(ctx, actor.UserID, AuditSessionOpened, entitySession, session.ID, nil, sessionSnapshot(session))
		s.publishSession(ctx, events.EventSessionOpened, actor.UserID, session, nil, true)
	}
	if result.Message != nil {
		s.publishMessage(ctx, session, result.Message)
	}
	return result, nil
}

// Claim assigns an unassigned session to the calling staff member.
func (s *SupportSessionService) Claim(ctx context.Context, actor domain.Actor, sessionID string) (*domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgStaffOnly)
	}

	var (
		session *domain.SupportChatSession
		before  map[string]any
		changed bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.loadOpenForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Assignment.IsAssignedTo(actor.UserID) {
			return nil
		}
		if session.Assignment.IsAssigned() {
			return apperrors.NewConflict(MsgSessionClaimedByOther, map[string]any{"session_id": session.ID})
		}

		before = sessionSnapshot(session)
		session.Assignment = domain.SessionAssignedTo(actor.UserID)
		session.Status = domain.SessionStatusActive
		if session.LastMessageAt == nil {
			session.LastMessageAt = timePtr(session.StartedAt)
		}
		changed = true
		return s.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.audit.Log(ctx, actor.UserID, AuditSessionClaimed, entitySession, session.ID, before, sessionSnapshot(session))
		s.publishSession(ctx, events.EventSessionClaimed, actor.UserID, session, nil, true)
	}
	return session, nil
}

// Unassign returns a session to the Waiting queue.
func (s *SupportSessionService) Unassign(ctx context.Context, actor domain.Actor, sessionID string) (*domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgStaffOnly)
	}

	var (
		session  *domain.SupportChatSession
		before   map[string]any
		previous *string
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.loadOpenForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.Assignment.IsAssignedTo(actor.UserID) && !actor.IsAdmin() {
			return apperrors.NewForbidden(MsgSessionNotYourClaim)
		}

		before = sessionSnapshot(session)
		previous = session.Assignment.Ptr()
		session.Assignment = domain.SessionUnassigned()
		session.Status = domain.SessionStatusWaiting
		return s.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditSessionUnassigned, entitySession, session.ID, before, sessionSnapshot(session))
	s.publishSession(ctx, events.EventSessionUnassigned, actor.UserID, session, previous, true)
	return session, nil
}

// Close ends a session. Closing a closed session is a no-op.
func (s *SupportSessionService) Close(ctx context.Context, actor domain.Actor, sessionID string) (*domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	var (
		session  *domain.SupportChatSession
		before   map[string]any
		previous *string
		changed  bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFoundOr(err, MsgSessionNotFound)
		}
		if session.IsClosed() {
			if !session.MayRepeatClose(actor.UserID) && !actor.IsAdmin() {
				return apperrors.NewForbidden(MsgSessionNotParticipant)
			}
			return nil
		}
		if !session.IsParticipant(actor.UserID) && !actor.IsAdmin() {
			return apperrors.NewForbidden(MsgSessionNotParticipant)
		}

		before = sessionSnapshot(session)
		previous = session.Assignment.Ptr()
		session.Status = domain.SessionStatusClosed
		session.ClosedAt = timePtr(s.clock.Now())
		session.ClosedStaffID = previous
		session.Assignment = domain.SessionUnassigned()
		changed = true
		return s.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.audit.Log(ctx, actor.UserID, AuditSessionClosed, entitySession, session.ID, before, sessionSnapshot(session))
		s.publishSession(ctx, events.EventSessionClosed, actor.UserID, session, previous, true)
	}
	return session, nil
}

// PostMessage appends a message from the session's customer or assigned staff.
func (s *SupportSessionService) PostMessage(ctx context.Context, actor domain.Actor, sessionID, content string) (*domain.SupportChatMessage, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError(MsgMessageEmpty, nil)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperrors.NewValidationError(MsgMessageTooLong, map[string]any{"max": maxMessageLength})
	}

	var (
		session  *domain.SupportChatSession
		message  *domain.SupportChatMessage
		promoted bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.loadOpenForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(actor.UserID) {
			return apperrors.NewForbidden(MsgSessionNotParticipant)
		}

		now := s.clock.Now()
		fromStaff := session.Assignment.IsAssignedTo(actor.UserID) && session.CustomerID != actor.UserID
		message = &domain.SupportChatMessage{
			ChatSessionID: session.ID,
			SenderID:      actor.UserID,
			IsFromStaff:   fromStaff,
			Content:       content,
			CreatedAt:     now,
		}
		if err := s.messages.Create(ctx, message); err != nil {
			return err
		}

		session.RecordMessage(content, now, s.previewMax)
		if fromStaff && session.Status == domain.SessionStatusWaiting {
			session.Status = domain.SessionStatusActive
			promoted = true
		}
		return s.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.publishMessage(ctx, session, message)
	if promoted {
		s.publishSession(ctx, events.EventSessionClaimed, actor.UserID, session, nil, true)
	}
	return message, nil
}

// AdminAssignStaff hands an unassigned session to a care-staff member.
func (s *SupportSessionService) AdminAssignStaff(ctx context.Context, actor domain.Actor, sessionID, staffID string) (*domain.SupportChatSession, error) {
	return s.adminHandover(ctx, actor, sessionID, staffID, false)
}

// AdminTransferStaff moves an assigned session to a different care-staff member.
func (s *SupportSessionService) AdminTransferStaff(ctx context.Context, actor domain.Actor, sessionID, staffID string) (*domain.SupportChatSession, error) {
	return s.adminHandover(ctx, actor, sessionID, staffID, true)
}

func (s *SupportSessionService) adminHandover(ctx context.Context, actor domain.Actor, sessionID, staffID string, transfer bool) (*domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden(MsgAdminOnly)
	}
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, apperrors.NewValidationError(MsgStaffIDRequired, nil)
	}

	var (
		session  *domain.SupportChatSession
		before   map[string]any
		previous *string
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.loadOpenForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}

		current, assigned := session.Assignment.StaffID()
		switch {
		case !transfer && assigned:
			return apperrors.NewInvalidState(MsgSessionAlreadyAssigned, map[string]any{"staff_id": current})
		case transfer && !assigned:
			return apperrors.NewInvalidState(MsgSessionNotAssigned, nil)
		case transfer && current == staffID:
			return apperrors.NewValidationError(MsgSameStaff, map[string]any{"staff_id": staffID})
		}

		if _, err := loadActiveCareStaff(ctx, s.users, staffID); err != nil {
			return err
		}

		before = sessionSnapshot(session)
		previous = session.Assignment.Ptr()
		session.Assignment = domain.SessionAssignedTo(staffID)
		return s.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	action, eventType := AuditSessionAssigned, events.EventSessionStaffAssigned
	if transfer {
		action, eventType = AuditSessionTransferred, events.EventSessionStaffTransfer
	}
	s.audit.Log(ctx, actor.UserID, action, entitySession, session.ID, before, sessionSnapshot(session))
	s.publishSession(ctx, eventType, actor.UserID, session, previous, true)
	return session, nil
}

// ListMessages returns the conversation to its participants and admins.
func (s *SupportSessionService) ListMessages(ctx context.Context, actor domain.Actor, sessionID string) ([]domain.SupportChatMessage, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, MsgSessionNotFound)
	}
	if !session.IsParticipant(actor.UserID) && !actor.IsAdmin() {
		return nil, apperrors.NewForbidden(MsgSessionNotParticipant)
	}
	return s.messages.ListBySession(ctx, session.ID)
}

// Get returns one session to its participants and staff.
func (s *SupportSessionService) Get(ctx context.Context, actor domain.Actor, sessionID string) (*domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, MsgSessionNotFound)
	}
	if session.CustomerID != actor.UserID && !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgSessionNotParticipant)
	}
	return session, nil
}

// ListQueue lists sessions for staff, highest priority and oldest first.
func (s *SupportSessionService) ListQueue(ctx context.Context, actor domain.Actor, statuses []domain.SessionStatus, limit, offset int) ([]domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgStaffOnly)
	}
	for _, status := range statuses {
		switch status {
		case domain.SessionStatusWaiting, domain.SessionStatusActive, domain.SessionStatusClosed:
		default:
			return nil, apperrors.NewValidationError(MsgStatusFilterBad, map[string]any{"status": status})
		}
	}
	return s.sessions.ListQueue(ctx, statuses, limit, offset)
}

// ListMine lists the caller's own sessions, most recent first.
func (s *SupportSessionService) ListMine(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.SupportChatSession, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.sessions.ListByCustomer(ctx, actor.UserID, limit, offset)
}

// loadOpenForUpdate locks the session and rejects missing or closed ones.
func (s *SupportSessionService) loadOpenForUpdate(ctx context.Context, sessionID string) (*domain.SupportChatSession, error) {
	session, err := s.sessions.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, MsgSessionNotFound)
	}
	if session.IsClosed() {
		return nil, apperrors.NewInvalidState(MsgSessionClosed, map[string]any{"session_id": session.ID})
	}
	return session, nil
}

func (s *SupportSessionService) publishSession(ctx context.Context, eventType events.EventType, actorID string, session *domain.SupportChatSession, previous *string, notifyStaff bool) {
	audience := events.Audience{UserIDs: []string{session.CustomerID}, Staff: notifyStaff}
	staffID := session.Assignment.Ptr()
	if staffID != nil {
		audience.UserIDs = append(audience.UserIDs, *staffID)
	}
	if previous != nil && (staffID == nil || *previous != *staffID) {
		audience.UserIDs = append(audience.UserIDs, *previous)
	}
	s.events.publish(ctx, events.Event{
		Type:       eventType,
		EntityType: entitySession,
		EntityID:   session.ID,
		ActorID:    actorID,
		Audience:   audience,
		Payload: events.SessionPayload{
			SessionID:     session.ID,
			CustomerID:    session.CustomerID,
			StaffID:       staffID,
			PreviousStaff: previous,
			Status:        session.Status,
			PriorityLevel: session.PriorityLevel,
		},
	})
}

func (s *SupportSessionService) publishMessage(ctx context.Context, session *domain.SupportChatSession, message *domain.SupportChatMessage) {
	audience := events.Audience{UserIDs: []string{session.CustomerID}}
	if staffID, ok := session.Assignment.StaffID(); ok {
		audience.UserIDs = append(audience.UserIDs, staffID)
	} else {
		audience.Staff = true
	}
	s.events.publish(ctx, events.Event{
		Type:       events.EventSessionMessagePosted,
		EntityType: entitySession,
		EntityID:   session.ID,
		ActorID:    message.SenderID,
		Audience:   audience,
		Payload: events.SessionMessagePayload{
			SessionID:   session.ID,
			MessageID:   message.ID,
			SenderID:    message.SenderID,
			IsFromStaff: message.IsFromStaff,
			Content:     message.Content,
			CreatedAt:   message.CreatedAt,
		},
	})
}

func sessionSnapshot(session *domain.SupportChatSession) map[string]any {
	return map[string]any{
		"status":          string(session.Status),
		"staff_id":        strValue(session.Assignment.Ptr()),
		"priority_level":  session.PriorityLevel,
		"closed_at":       timeValue(session.ClosedAt),
		"last_message_at": timeValue(session.LastMessageAt),
	}
}
