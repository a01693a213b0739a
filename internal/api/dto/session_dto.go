package dto

import (
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// OpenSessionRequest starts or resumes the caller's support chat.
type OpenSessionRequest struct {
	InitialMessage string `json:"initial_message"`
	PriorityLevel  int    `json:"priority_level"`
}

// PostMessageRequest appends a chat message.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// SessionResponse is the wire view of a support chat session.
type SessionResponse struct {
	ID                 string               `json:"id"`
	CustomerID         string               `json:"customer_id"`
	AssignedStaffID    *string              `json:"assigned_staff_id"`
	Status             domain.SessionStatus `json:"status"`
	PriorityLevel      int                  `json:"priority_level"`
	StartedAt          time.Time            `json:"started_at"`
	ClosedAt           *time.Time           `json:"closed_at,omitempty"`
	LastMessageAt      *time.Time           `json:"last_message_at,omitempty"`
	LastMessagePreview string               `json:"last_message_preview,omitempty"`
}

// OpenSessionResponse adds reuse and history hints to the session.
type OpenSessionResponse struct {
	Session                  SessionResponse  `json:"session"`
	Message                  *MessageResponse `json:"message,omitempty"`
	Created                  bool             `json:"created"`
	HasPreviousClosedSession bool             `json:"has_previous_closed_session"`
	LastClosedSessionID      *string          `json:"last_closed_session_id,omitempty"`
	LastClosedAt             *time.Time       `json:"last_closed_at,omitempty"`
}

// MessageResponse is a chat message.
type MessageResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	SenderID    string    `json:"sender_id"`
	IsFromStaff bool      `json:"is_from_staff"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSessionResponse maps a session.
func NewSessionResponse(session *domain.SupportChatSession) SessionResponse {
	return SessionResponse{
		ID:                 session.ID,
		CustomerID:         session.CustomerID,
		AssignedStaffID:    session.Assignment.Ptr(),
		Status:             session.Status,
		PriorityLevel:      session.PriorityLevel,
		StartedAt:          session.StartedAt,
		ClosedAt:           session.ClosedAt,
		LastMessageAt:      session.LastMessageAt,
		LastMessagePreview: session.LastMessagePreview,
	}
}

// NewSessionResponses maps a page of sessions.
func NewSessionResponses(sessions []domain.SupportChatSession) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, NewSessionResponse(&sessions[i]))
	}
	return out
}

// NewMessageResponse maps a message.
func NewMessageResponse(msg *domain.SupportChatMessage) MessageResponse {
	return MessageResponse{
		ID:          msg.ID,
		SessionID:   msg.ChatSessionID,
		SenderID:    msg.SenderID,
		IsFromStaff: msg.IsFromStaff,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
	}
}
