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
	maxTemplateCodeLength = 50
	maxDescriptionLength  = 1000
	defaultTicketPrefix   = "TCK"
)

// TicketService coordinates customer ticket creation and reads.
type TicketService struct {
	tx         repository.TxManager
	tickets    repository.TicketRepository
	templates  repository.TicketTemplateRepository
	codes      repository.TicketCodeSequence
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	audit      *AuditLogger
	events     publisher
	clock      clock.Clock
	codePrefix string
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TxManager    repository.TxManager
	TicketRepo   repository.TicketRepository
	TemplateRepo repository.TicketTemplateRepository
	CodeSequence repository.TicketCodeSequence
	HistoryRepo  repository.TicketHistoryRepository
	UserRepo     repository.UserRepository
	Audit        *AuditLogger
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
	CodePrefix   string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	TemplateCode string
	Description  string
}

// TicketStaffFilter describes staff listing filters.
type TicketStaffFilter struct {
	AssigneeID      *string
	Statuses        []domain.TicketStatus
	AssignmentState *domain.AssignmentState
	Severities      []domain.TicketSeverity
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	prefix := strings.TrimSpace(deps.CodePrefix)
	if prefix == "" {
		prefix = defaultTicketPrefix
	}
	return &TicketService{
		tx:         deps.TxManager,
		tickets:    deps.TicketRepo,
		templates:  deps.TemplateRepo,
		codes:      deps.CodeSequence,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		audit:      deps.Audit,
		events:     newPublisher(deps.Dispatcher, clk, deps.Logger),
		clock:      clk,
		codePrefix: prefix,
	}
}

// CreateCustomerTicket opens a ticket from an active subject template.
func (s *TicketService) CreateCustomerTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(input.TemplateCode)
	if code == "" {
		return nil, apperrors.NewValidationError(MsgTemplateCodeRequired, nil)
	}
	if utf8.RuneCountInString(code) > maxTemplateCodeLength {
		return nil, apperrors.NewValidationError(MsgTemplateCodeTooLong, map[string]any{"max": maxTemplateCodeLength})
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, apperrors.NewValidationError(MsgDescriptionTooLong, map[string]any{"max": maxDescriptionLength})
	}
	if !actor.IsCustomer() {
		return nil, apperrors.NewForbidden(MsgCustomerOnly)
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewUnauthorized(MsgUnauthenticated)
		}
		return nil, err
	}
	if !user.EmailVerified {
		return nil, apperrors.NewForbidden(MsgEmailNotVerified)
	}

	var ticket *domain.Ticket
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		template, err := s.templates.GetActiveByCode(ctx, code)
		if err != nil {
			if isNoRows(err) {
				return apperrors.NewValidationError(MsgTemplateInvalid, map[string]any{"template_code": code})
			}
			return err
		}
		seq, err := s.codes.Next(ctx, s.codePrefix)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		ticket = &domain.Ticket{
			TicketCode:   domain.FormatTicketCode(s.codePrefix, seq),
			UserID:       actor.UserID,
			Subject:      template.Subject,
			Description:  description,
			Category:     template.Category,
			Status:       domain.TicketStatusNew,
			Assignment:   domain.TicketUnassigned(),
			Severity:     template.Severity,
			TemplateCode: template.Code,
			CreatedAt:    now,
		}
		ticket.ApplySLADefaults(now)
		ticket.Touch(now)
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		return recordTicketChange(ctx, s.history, actor.UserID, ticket.ID, domain.ChangeTypeCreated, nil, ticketSnapshot(ticket), now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTicketCreated, entityTicket, ticket.ID, nil, ticketSnapshot(ticket))
	publishTicket(ctx, s.events, events.EventTicketCreated, actor.UserID, ticket, nil)
	return ticket, nil
}

// ListTemplates returns the active subject templates.
func (s *TicketService) ListTemplates(ctx context.Context, actor domain.Actor) ([]domain.TicketSubjectTemplate, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.templates.ListActive(ctx)
}

// ListMyTickets returns the caller's tickets, newest first.
func (s *TicketService) ListMyTickets(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Ticket, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.tickets.ListByUser(ctx, actor.UserID, limit, offset)
}

// ListStaffTickets returns tickets matching filter for staff.
func (s *TicketService) ListStaffTickets(ctx context.Context, actor domain.Actor, filter TicketStaffFilter) ([]domain.Ticket, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgStaffOnly)
	}
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		AssigneeID:      filter.AssigneeID,
		Statuses:        filter.Statuses,
		AssignmentState: filter.AssignmentState,
		Severities:      filter.Severities,
		SearchTerm:      filter.SearchTerm,
		CreatedFrom:     filter.CreatedFrom,
		CreatedTo:       filter.CreatedTo,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
}

// GetTicket returns a ticket to its owner or to staff.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, MsgTicketNotFound)
	}
	if ticket.UserID != actor.UserID && !actor.IsStaff() {
		return nil, apperrors.NewForbidden(MsgTicketAccessDenied)
	}
	return ticket, nil
}

// ListHistory returns the ticket's change trail.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}

func publishTicket(ctx context.Context, p publisher, eventType events.EventType, actorID string, ticket *domain.Ticket, previous *string) {
	audience := events.Audience{UserIDs: []string{ticket.UserID}, Staff: true}
	assignee := ticket.Assignment.AssigneePtr()
	if assignee != nil {
		audience.UserIDs = append(audience.UserIDs, *assignee)
	}
	if previous != nil && (assignee == nil || *previous != *assignee) {
		audience.UserIDs = append(audience.UserIDs, *previous)
	}
	p.publish(ctx, events.Event{
		Type:       eventType,
		EntityType: entityTicket,
		EntityID:   ticket.ID,
		ActorID:    actorID,
		Audience:   audience,
		Payload: events.TicketPayload{
			TicketID:        ticket.ID,
			TicketCode:      ticket.TicketCode,
			UserID:          ticket.UserID,
			Status:          ticket.Status,
			AssignmentState: ticket.Assignment.State(),
			AssigneeID:      assignee,
			PreviousAssign:  previous,
			Severity:        ticket.Severity,
		},
	})
}

func ticketSnapshot(ticket *domain.Ticket) map[string]any {
	return map[string]any{
		"ticket_code":      ticket.TicketCode,
		"status":           string(ticket.Status),
		"assignment_state": string(ticket.Assignment.State()),
		"assignee_id":      strValue(ticket.Assignment.AssigneePtr()),
		"severity":         string(ticket.Severity),
		"priority_level":   ticket.PriorityLevel,
	}
}
