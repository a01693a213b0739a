package dto

import "github.com/spec-kit/support-service/internal/domain"

// StaffCreateRequest provisions a staff account.
type StaffCreateRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.RoleCode `json:"role" validate:"required"`
}

// UserStatusRequest enables or disables an account.
type UserStatusRequest struct {
	Status domain.UserStatus `json:"status" validate:"required,oneof=ACTIVE DISABLED"`
}

// StaffAssignRequest names the staff member for admin session handovers.
type StaffAssignRequest struct {
	StaffID string `json:"staff_id"`
}
