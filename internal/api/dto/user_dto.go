package dto

import (
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// RegisterRequest payload for customer signup. Field rules are enforced by the service.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailConfirmRequest redeems a verification token.
type VerifyEmailConfirmRequest struct {
	Token string `json:"token" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of a directory entry.
type UserResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Status        domain.UserStatus `json:"status"`
	Roles         []domain.RoleCode `json:"roles"`
	EmailVerified bool              `json:"email_verified"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewUserResponse maps a user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Status:        user.Status,
		Roles:         user.Roles,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}
