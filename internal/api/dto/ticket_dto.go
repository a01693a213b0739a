package dto

import (
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	TemplateCode string `json:"template_code"`
	Description  string `json:"description"`
}

// TransferTicketRequest names the technical assignee.
type TransferTicketRequest struct {
	NewAssigneeID string `json:"new_assignee_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                 `json:"id"`
	TicketCode      string                 `json:"ticket_code"`
	UserID          string                 `json:"user_id"`
	Subject         string                 `json:"subject"`
	Category        string                 `json:"category"`
	Status          domain.TicketStatus    `json:"status"`
	AssignmentState domain.AssignmentState `json:"assignment_state"`
	AssigneeID      *string                `json:"assignee_id"`
	Severity        domain.TicketSeverity  `json:"severity"`
	PriorityLevel   int                    `json:"priority_level"`
	SLAStatus       domain.SLAStatus       `json:"sla_status"`
	SLADueAt        *time.Time             `json:"sla_due_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       *time.Time             `json:"updated_at,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string                  `json:"description"`
	TemplateCode string                  `json:"template_code"`
	History      []TicketHistoryResponse `json:"history"`
}

// TicketHistoryResponse is one audit trail entry of a ticket.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TemplateResponse is an active ticket subject.
type TemplateResponse struct {
	Code     string                `json:"code"`
	Subject  string                `json:"subject"`
	Category string                `json:"category"`
	Severity domain.TicketSeverity `json:"severity"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              ticket.ID,
		TicketCode:      ticket.TicketCode,
		UserID:          ticket.UserID,
		Subject:         ticket.Subject,
		Category:        ticket.Category,
		Status:          ticket.Status,
		AssignmentState: ticket.Assignment.State(),
		AssigneeID:      ticket.Assignment.AssigneePtr(),
		Severity:        ticket.Severity,
		PriorityLevel:   ticket.PriorityLevel,
		SLAStatus:       ticket.SLAStatus,
		SLADueAt:        ticket.SLADueAt,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

// NewTicketSummaries maps a page of tickets.
func NewTicketSummaries(tickets []domain.Ticket) []TicketSummary {
	out := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketSummary(&tickets[i]))
	}
	return out
}

// NewTicketDetail maps a ticket with its history.
func NewTicketDetail(ticket *domain.Ticket, history []domain.TicketHistory) TicketDetailResponse {
	entries := make([]TicketHistoryResponse, 0, len(history))
	for _, entry := range history {
		entries = append(entries, TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(ticket),
		Description:   ticket.Description,
		TemplateCode:  ticket.TemplateCode,
		History:       entries,
	}
}
