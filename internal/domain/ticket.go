package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
)

// IsTerminal reports whether no further assignment mutation is permitted.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCompleted
}

// TicketSeverity enumerates SLA urgency.
type TicketSeverity string

const (
	SeverityLow      TicketSeverity = "LOW"
	SeverityMedium   TicketSeverity = "MEDIUM"
	SeverityHigh     TicketSeverity = "HIGH"
	SeverityCritical TicketSeverity = "CRITICAL"
)

// SLAStatus tracks the ticket against its due time.
type SLAStatus string

const (
	SLAStatusOnTrack  SLAStatus = "ON_TRACK"
	SLAStatusAtRisk   SLAStatus = "AT_RISK"
	SLAStatusBreached SLAStatus = "BREACHED"
)

var severityResponseWindow = map[TicketSeverity]time.Duration{
	SeverityCritical: 4 * time.Hour,
	SeverityHigh:     8 * time.Hour,
	SeverityMedium:   24 * time.Hour,
	SeverityLow:      72 * time.Hour,
}

var severityPriority = map[TicketSeverity]int{
	SeverityLow:      1,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// NormalizeSeverity falls back to Medium for unknown values.
func NormalizeSeverity(s TicketSeverity) TicketSeverity {
	if _, ok := severityResponseWindow[s]; ok {
		return s
	}
	return SeverityMedium
}

// ResponseWindow is the SLA window for the severity.
func (s TicketSeverity) ResponseWindow() time.Duration {
	return severityResponseWindow[NormalizeSeverity(s)]
}

// PriorityLevel maps the severity onto the 1-3 priority scale.
func (s TicketSeverity) PriorityLevel() int {
	return severityPriority[NormalizeSeverity(s)]
}

// AssignmentState enumerates ticket ownership states.
type AssignmentState string

const (
	AssignmentUnassigned AssignmentState = "UNASSIGNED"
	AssignmentAssigned   AssignmentState = "ASSIGNED"
	AssignmentTechnical  AssignmentState = "TECHNICAL"
)

// TicketAssignment pairs the assignment state with its assignee.
// Unassigned never carries an assignee and the other states always do.
type TicketAssignment struct {
	state    AssignmentState
	assignee string
}

func TicketUnassigned() TicketAssignment {
	return TicketAssignment{state: AssignmentUnassigned}
}

func TicketAssignedTo(staffID string) TicketAssignment {
	if staffID == "" {
		return TicketUnassigned()
	}
	return TicketAssignment{state: AssignmentAssigned, assignee: staffID}
}

func TicketTechnicalTo(staffID string) TicketAssignment {
	if staffID == "" {
		return TicketUnassigned()
	}
	return TicketAssignment{state: AssignmentTechnical, assignee: staffID}
}

// TicketAssignmentFrom rebuilds the variant from stored columns.
func TicketAssignmentFrom(state AssignmentState, assignee *string) (TicketAssignment, error) {
	switch state {
	case AssignmentUnassigned, "":
		if assignee != nil {
			return TicketAssignment{}, fmt.Errorf("unassigned ticket carries assignee %q", *assignee)
		}
		return TicketUnassigned(), nil
	case AssignmentAssigned, AssignmentTechnical:
		if assignee == nil || *assignee == "" {
			return TicketAssignment{}, fmt.Errorf("%s ticket without assignee", state)
		}
		return TicketAssignment{state: state, assignee: *assignee}, nil
	default:
		return TicketAssignment{}, fmt.Errorf("unknown assignment state %q", state)
	}
}

// State returns the assignment state. The zero value reads as Unassigned.
func (a TicketAssignment) State() AssignmentState {
	if a.state == "" {
		return AssignmentUnassigned
	}
	return a.state
}

func (a TicketAssignment) AssigneeID() (string, bool) {
	return a.assignee, a.assignee != ""
}

func (a TicketAssignment) AssigneePtr() *string {
	if a.assignee == "" {
		return nil
	}
	id := a.assignee
	return &id
}

func (a TicketAssignment) IsUnassigned() bool {
	return a.State() == AssignmentUnassigned
}

// Ticket is the aggregate for customer support requests.
type Ticket struct {
	ID            string
	TicketCode    string
	UserID        string
	Subject       string
	Description   string
	Category      string
	Status        TicketStatus
	Assignment    TicketAssignment
	Severity      TicketSeverity
	SLAStatus     SLAStatus
	SLADueAt      *time.Time
	PriorityLevel int
	TemplateCode  string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// ApplySLADefaults derives SLA fields from the severity at creation time.
func (t *Ticket) ApplySLADefaults(now time.Time) {
	t.Severity = NormalizeSeverity(t.Severity)
	if t.SLAStatus == "" {
		t.SLAStatus = SLAStatusOnTrack
	}
	due := now.Add(t.Severity.ResponseWindow())
	t.SLADueAt = &due
	t.PriorityLevel = t.Severity.PriorityLevel()
}

// Touch sets UpdatedAt.
func (t *Ticket) Touch(now time.Time) {
	ts := now
	t.UpdatedAt = &ts
}

// TicketSubjectTemplate is an admin-maintained ticket subject customers pick from.
type TicketSubjectTemplate struct {
	Code      string
	Subject   string
	Category  string
	Severity  TicketSeverity
	IsActive  bool
	CreatedAt time.Time
}

// FormatTicketCode renders a sequence number as e.g. TCK-0042.
func FormatTicketCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// DefaultTicketTemplates is the template set installed with a fresh database.
func DefaultTicketTemplates() []TicketSubjectTemplate {
	return []TicketSubjectTemplate{
		{Code: "LOGIN_ISSUE", Subject: "Không thể đăng nhập tài khoản", Category: "ACCOUNT", Severity: SeverityHigh, IsActive: true},
		{Code: "PAYMENT_FAILED", Subject: "Thanh toán không thành công", Category: "PAYMENT", Severity: SeverityCritical, IsActive: true},
		{Code: "ORDER_NOT_RECEIVED", Subject: "Chưa nhận được sản phẩm đã mua", Category: "ORDER", Severity: SeverityHigh, IsActive: true},
		{Code: "KEY_INVALID", Subject: "Key sản phẩm không hợp lệ", Category: "PRODUCT", Severity: SeverityMedium, IsActive: true},
		{Code: "REFUND_REQUEST", Subject: "Yêu cầu hoàn tiền", Category: "PAYMENT", Severity: SeverityMedium, IsActive: true},
		{Code: "OTHER", Subject: "Vấn đề khác", Category: "GENERAL", Severity: SeverityLow, IsActive: true},
	}
}
