package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SessionStatus enumerates support chat session states.
type SessionStatus string

const (
	SessionStatusWaiting SessionStatus = "WAITING"
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusClosed  SessionStatus = "CLOSED"
)

const (
	MinSessionPriority = 1
	MaxSessionPriority = 3
)

// SessionAssignment is either unassigned (zero value) or assigned to one staff member.
type SessionAssignment struct {
	staffID string
}

// SessionUnassigned returns the unassigned variant.
func SessionUnassigned() SessionAssignment {
	return SessionAssignment{}
}

// SessionAssignedTo returns the assigned variant. An empty id yields Unassigned.
func SessionAssignedTo(staffID string) SessionAssignment {
	return SessionAssignment{staffID: staffID}
}

// StaffID returns the assigned staff id and whether the session is assigned.
func (a SessionAssignment) StaffID() (string, bool) {
	return a.staffID, a.staffID != ""
}

func (a SessionAssignment) IsAssigned() bool {
	return a.staffID != ""
}

// IsAssignedTo reports whether staffID currently holds the session.
func (a SessionAssignment) IsAssignedTo(staffID string) bool {
	return a.staffID != "" && a.staffID == staffID
}

// Ptr converts to the nullable column representation.
func (a SessionAssignment) Ptr() *string {
	if a.staffID == "" {
		return nil
	}
	id := a.staffID
	return &id
}

// SessionAssignmentFromPtr converts from the nullable column representation.
func SessionAssignmentFromPtr(id *string) SessionAssignment {
	if id == nil {
		return SessionUnassigned()
	}
	return SessionAssignedTo(*id)
}

// SupportChatSession is one customer's support conversation.
type SupportChatSession struct {
	ID                 string
	CustomerID         string
	Assignment         SessionAssignment
	Status             SessionStatus
	PriorityLevel      int
	StartedAt          time.Time
	ClosedAt           *time.Time
	// ClosedStaffID is the staff assigned when the session was closed.
	ClosedStaffID      *string
	LastMessageAt      *time.Time
	LastMessagePreview string
}

func (s *SupportChatSession) IsClosed() bool {
	return s.Status == SessionStatusClosed
}

// IsParticipant reports whether userID is the customer or the assigned staff.
func (s *SupportChatSession) IsParticipant(userID string) bool {
	return s.CustomerID == userID || s.Assignment.IsAssignedTo(userID)
}

// MayRepeatClose reports whether userID may re-close a closed session: its
// customer or the staff who held it at close time.
func (s *SupportChatSession) MayRepeatClose(userID string) bool {
	if s.CustomerID == userID {
		return true
	}
	return s.ClosedStaffID != nil && *s.ClosedStaffID == userID
}

// RecordMessage updates the last message bookkeeping.
func (s *SupportChatSession) RecordMessage(content string, at time.Time, previewMax int) {
	t := at
	s.LastMessageAt = &t
	s.LastMessagePreview = TruncatePreview(content, previewMax)
}

// SupportChatMessage is one immutable message within a session.
type SupportChatMessage struct {
	ID            string
	ChatSessionID string
	SenderID      string
	IsFromStaff   bool
	Content       string
	CreatedAt     time.Time
}

// NormalizePriority clamps a requested priority into [1,3].
func NormalizePriority(level int) int {
	if level < MinSessionPriority {
		return MinSessionPriority
	}
	if level > MaxSessionPriority {
		return MaxSessionPriority
	}
	return level
}

// TruncatePreview trims content and cuts it to at most max runes.
func TruncatePreview(content string, max int) string {
	content = strings.TrimSpace(content)
	if max <= 0 || utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max])
}
