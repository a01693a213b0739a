package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tx          repository.TxManager
	tickets     repository.TicketRepository
	users       repository.UserRepository
	historyRepo repository.TicketHistoryRepository
	audit       *AuditLogger
	events      publisher
	clock       clock.Clock
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TxManager   repository.TxManager
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Audit       *AuditLogger
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &AssignmentService{
		tx:          deps.TxManager,
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		historyRepo: deps.HistoryRepo,
		audit:       deps.Audit,
		events:      newPublisher(deps.Dispatcher, clk, deps.Logger),
		clock:       clk,
	}
}

// AssignToMe lets an active care-staff member take a non-terminal ticket,
// including one already assigned to someone else.
func (s *AssignmentService) AssignToMe(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized(MsgTicketStaffUnresolved)
	}

	var (
		ticket   *domain.Ticket
		before   map[string]any
		previous *string
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, MsgTicketNotFound)
		}
		if ticket.Status.IsTerminal() {
			return apperrors.NewInvalidState(MsgTicketLocked, map[string]any{"status": ticket.Status})
		}
		staff, err := s.users.GetByID(ctx, actor.UserID)
		if err != nil && !isNoRows(err) {
			return err
		}
		if staff == nil || !staff.IsActiveCareStaff() {
			return apperrors.NewForbidden(MsgTicketCareStaffOnly)
		}

		before = ticketSnapshot(ticket)
		previous = ticket.Assignment.AssigneePtr()
		oldState, oldStatus := ticket.Assignment.State(), ticket.Status

		now := s.clock.Now()
		ticket.Assignment = domain.TicketAssignedTo(staff.ID)
		if ticket.Status == domain.TicketStatusNew {
			ticket.Status = domain.TicketStatusInProgress
		}
		ticket.Touch(now)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return s.recordTransition(ctx, actor.UserID, ticket, previous, oldState, oldStatus, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTicketAssigned, entityTicket, ticket.ID, before, ticketSnapshot(ticket))
	publishTicket(ctx, s.events, events.EventTicketAssigned, actor.UserID, ticket, previous)
	return ticket, nil
}

// TransferToTech hands an assigned ticket to another care-staff member and
// marks it Technical.
func (s *AssignmentService) TransferToTech(ctx context.Context, actor domain.Actor, ticketID, newAssigneeID string) (*domain.Ticket, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgStaffOnly)
	}
	newAssigneeID = strings.TrimSpace(newAssigneeID)
	if newAssigneeID == "" {
		return nil, apperrors.NewValidationError(MsgStaffIDRequired, nil)
	}

	var (
		ticket   *domain.Ticket
		before   map[string]any
		previous *string
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, MsgTicketNotFound)
		}
		if ticket.Status.IsTerminal() {
			return apperrors.NewInvalidState(MsgTicketLockedTransfer, map[string]any{"status": ticket.Status})
		}
		current, assigned := ticket.Assignment.AssigneeID()
		if !assigned {
			return apperrors.NewInvalidState(MsgTicketAssignFirst, nil)
		}
		if current == newAssigneeID {
			return apperrors.NewValidationError(MsgSameStaff, map[string]any{"assignee_id": newAssigneeID})
		}
		if _, err := loadActiveCareStaff(ctx, s.users, newAssigneeID); err != nil {
			return err
		}

		before = ticketSnapshot(ticket)
		previous = ticket.Assignment.AssigneePtr()
		oldState, oldStatus := ticket.Assignment.State(), ticket.Status

		now := s.clock.Now()
		ticket.Assignment = domain.TicketTechnicalTo(newAssigneeID)
		ticket.Status = domain.TicketStatusInProgress
		ticket.Touch(now)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return s.recordTransition(ctx, actor.UserID, ticket, previous, oldState, oldStatus, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTicketTransferred, entityTicket, ticket.ID, before, ticketSnapshot(ticket))
	publishTicket(ctx, s.events, events.EventTicketTransferred, actor.UserID, ticket, previous)
	return ticket, nil
}

// CompleteTicket closes out a ticket as its assignee or as an admin.
func (s *AssignmentService) CompleteTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	var (
		ticket *domain.Ticket
		before map[string]any
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, MsgTicketNotFound)
		}
		if ticket.Status.IsTerminal() {
			return apperrors.NewInvalidState(MsgTicketLockedComplete, map[string]any{"status": ticket.Status})
		}
		assignee, _ := ticket.Assignment.AssigneeID()
		if assignee != actor.UserID && !actor.IsAdmin() {
			return apperrors.NewForbidden(MsgTicketNotAssignee)
		}

		before = ticketSnapshot(ticket)
		oldStatus := ticket.Status
		now := s.clock.Now()
		ticket.Status = domain.TicketStatusCompleted
		ticket.Touch(now)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return recordTicketChange(ctx, s.historyRepo, actor.UserID, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": string(oldStatus)},
			map[string]any{"status": string(ticket.Status)}, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTicketCompleted, entityTicket, ticket.ID, before, ticketSnapshot(ticket))
	publishTicket(ctx, s.events, events.EventTicketCompleted, actor.UserID, ticket, nil)
	return ticket, nil
}

// recordTransition writes one history row per changed dimension.
func (s *AssignmentService) recordTransition(ctx context.Context, actorID string, ticket *domain.Ticket, oldAssignee *string, oldState domain.AssignmentState, oldStatus domain.TicketStatus, now time.Time) error {
	newAssignee := ticket.Assignment.AssigneePtr()
	if strValue(oldAssignee) != strValue(newAssignee) {
		if err := recordTicketChange(ctx, s.historyRepo, actorID, ticket.ID, domain.ChangeTypeAssignee,
			map[string]any{"assignee_id": strValue(oldAssignee)},
			map[string]any{"assignee_id": strValue(newAssignee)}, now); err != nil {
			return err
		}
	}
	if oldState != ticket.Assignment.State() {
		if err := recordTicketChange(ctx, s.historyRepo, actorID, ticket.ID, domain.ChangeTypeAssignment,
			map[string]any{"assignment_state": string(oldState)},
			map[string]any{"assignment_state": string(ticket.Assignment.State())}, now); err != nil {
			return err
		}
	}
	if oldStatus != ticket.Status {
		return recordTicketChange(ctx, s.historyRepo, actorID, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": string(oldStatus)},
			map[string]any{"status": string(ticket.Status)}, now)
	}
	return nil
}

func recordTicketChange(ctx context.Context, repo repository.TicketHistoryRepository, actorID, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any, now time.Time) error {
	var changedBy *string
	if actorID != "" {
		id := actorID
		changedBy = &id
	}
	return repo.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: changedBy,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   now,
	})
}
