package events

import (
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionOpened         EventType = "support_session_opened"
	EventSessionClaimed        EventType = "support_session_claimed"
	EventSessionUnassigned     EventType = "support_session_unassigned"
	EventSessionClosed         EventType = "support_session_closed"
	EventSessionMessagePosted  EventType = "support_session_message_posted"
	EventSessionStaffAssigned  EventType = "support_session_staff_assigned"
	EventSessionStaffTransfer  EventType = "support_session_staff_transferred"
	EventTicketCreated         EventType = "ticket_created"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketTransferred     EventType = "ticket_transferred"
	EventTicketCompleted       EventType = "ticket_completed"
	EventPriorityTierChanged   EventType = "priority_tier_changed"
	EventEmailVerificationSent EventType = "email_verification_requested"
)

// Audience names who should hear about an event.
type Audience struct {
	UserIDs []string `json:"user_ids,omitempty"`
	Staff   bool     `json:"staff,omitempty"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	ActorID    string      `json:"actor_id,omitempty"`
	Audience   Audience    `json:"audience"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// SessionPayload is carried by every support session event.
type SessionPayload struct {
	SessionID     string               `json:"session_id"`
	CustomerID    string               `json:"customer_id"`
	StaffID       *string              `json:"staff_id,omitempty"`
	PreviousStaff *string              `json:"previous_staff_id,omitempty"`
	Status        domain.SessionStatus `json:"status"`
	PriorityLevel int                  `json:"priority_level"`
}

// SessionMessagePayload is carried by message events.
type SessionMessagePayload struct {
	SessionID   string    `json:"session_id"`
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	IsFromStaff bool      `json:"is_from_staff"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketPayload is carried by ticket events.
type TicketPayload struct {
	TicketID        string                 `json:"ticket_id"`
	TicketCode      string                 `json:"ticket_code"`
	UserID          string                 `json:"user_id"`
	Status          domain.TicketStatus    `json:"status"`
	AssignmentState domain.AssignmentState `json:"assignment_state"`
	AssigneeID      *string                `json:"assignee_id,omitempty"`
	PreviousAssign  *string                `json:"previous_assignee_id,omitempty"`
	Severity        domain.TicketSeverity  `json:"severity"`
}

// PriorityTierPayload is carried by tier events.
type PriorityTierPayload struct {
	Catalog       domain.TierCatalog `json:"catalog"`
	TierID        string             `json:"tier_id"`
	PriorityLevel int                `json:"priority_level"`
	Threshold     int64              `json:"threshold"`
	IsActive      bool               `json:"is_active"`
	Deactivated   int64              `json:"deactivated"`
}

// EmailVerificationPayload carries the one-time token to the mail channel.
type EmailVerificationPayload struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
