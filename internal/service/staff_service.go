package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// Audit actions for directory management.
const (
	AuditStaffCreated      = "STAFF_CREATED"
	AuditUserStatusChanged = "USER_STATUS_CHANGED"
	AuditAdminBootstrapped = "ADMIN_BOOTSTRAPPED"
)

var staffRoles = []domain.RoleCode{domain.RoleCareStaff, domain.RoleTechnicalStaff, domain.RoleAdmin}

// StaffService manages staff accounts in the user directory.
type StaffService struct {
	users      repository.UserRepository
	audit      *AuditLogger
	clock      clock.Clock
	logger     *zap.Logger
	validate   *validator.Validate
	bcryptCost int
}

// StaffDependencies encapsulates collaborators for staff management.
type StaffDependencies struct {
	UserRepo   repository.UserRepository
	Audit      *AuditLogger
	Clock      clock.Clock
	Logger     *zap.Logger
	BcryptCost int
}

// StaffCreateInput describes a new staff account.
type StaffCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.RoleCode
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		users:      deps.UserRepo,
		audit:      deps.Audit,
		clock:      clk,
		logger:     logger,
		validate:   validator.New(),
		bcryptCost: deps.BcryptCost,
	}
}

// CreateStaff provisions a staff account. Staff emails are trusted as verified.
func (s *StaffService) CreateStaff(ctx context.Context, actor domain.Actor, input StaffCreateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !contains(staffRoles, input.Role) {
		return nil, apperrors.NewValidationError(MsgRoleInvalid, map[string]any{"role": input.Role})
	}
	user, err := s.createUser(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, actor.UserID, AuditStaffCreated, entityUser, user.ID, nil, userSnapshot(user))
	return user, nil
}

// EnsureAdmin creates the first administrator from the command line. An
// existing account with the email is returned unchanged.
func (s *StaffService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return existing, false, nil
	}
	if !isNoRows(err) {
		return nil, false, err
	}
	user, err := s.createUser(ctx, StaffCreateInput{Name: name, Email: email, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	s.audit.Log(ctx, "", AuditAdminBootstrapped, entityUser, user.ID, nil, userSnapshot(user))
	s.logger.Info("administrator created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, true, nil
}

// ListStaff returns staff accounts ordered by name.
func (s *StaffService) ListStaff(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.ListByRoles(ctx, staffRoles, limit, offset)
}

// SetStatus enables or disables an account. Disabled users lose access on
// their next request.
func (s *StaffService) SetStatus(ctx context.Context, actor domain.Actor, userID string, status domain.UserStatus) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if status != domain.UserStatusActive && status != domain.UserStatusDisabled {
		return nil, apperrors.NewValidationError(MsgStatusInvalid, map[string]any{"status": status})
	}
	if userID == actor.UserID && status == domain.UserStatusDisabled {
		return nil, apperrors.NewValidationError(MsgCannotDisableSelf, nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, MsgUserNotFound)
	}
	if user.Status == status {
		return user, nil
	}
	before := userSnapshot(user)
	user.Status = status
	user.UpdatedAt = s.clock.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, actor.UserID, AuditUserStatusChanged, entityUser, user.ID, before, userSnapshot(user))
	return user, nil
}

func (s *StaffService) createUser(ctx context.Context, input StaffCreateInput) (*domain.User, error) {
	name, email, err := validateAccount(s.validate, input.Name, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict(MsgEmailTaken, map[string]any{"email": email})
	} else if !isNoRows(err) {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	user := &domain.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Status:        domain.UserStatusActive,
		Roles:         []domain.RoleCode{input.Role},
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func userSnapshot(user *domain.User) map[string]any {
	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, string(role))
	}
	return map[string]any{
		"email":  user.Email,
		"status": string(user.Status),
		"roles":  roles,
	}
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
