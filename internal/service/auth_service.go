package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	maxNameLength     = 120
)

// AuthService coordinates registration, login and email verification.
type AuthService struct {
	users           repository.UserRepository
	tokenMgr        *auth.TokenManager
	attempts        auth.AttemptStore
	verifications   auth.TokenStore
	audit           *AuditLogger
	events          publisher
	clock           clock.Clock
	logger          *zap.Logger
	validate        *validator.Validate
	bcryptCost      int
	maxFailures     int
	lockoutWindow   time.Duration
	verificationTTL time.Duration
}

// AuthDependencies encapsulates collaborators for auth service.
type AuthDependencies struct {
	UserRepo        repository.UserRepository
	Tokens          *auth.TokenManager
	Attempts        auth.AttemptStore
	Verifications   auth.TokenStore
	Audit           *AuditLogger
	Dispatcher      events.Dispatcher
	Clock           clock.Clock
	Logger          *zap.Logger
	BcryptCost      int
	MaxFailedLogins int
	LockoutWindow   time.Duration
	VerificationTTL time.Duration
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput describes a self-service customer signup.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := deps.MaxFailedLogins
	if maxFailures <= 0 {
		maxFailures = 5
	}
	window := deps.LockoutWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	ttl := deps.VerificationTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		users:           deps.UserRepo,
		tokenMgr:        deps.Tokens,
		attempts:        deps.Attempts,
		verifications:   deps.Verifications,
		audit:           deps.Audit,
		events:          newPublisher(deps.Dispatcher, clk, logger),
		clock:           clk,
		logger:          logger,
		validate:        validator.New(),
		bcryptCost:      deps.BcryptCost,
		maxFailures:     maxFailures,
		lockoutWindow:   window,
		verificationTTL: ttl,
	}
}

// Register creates an active, unverified customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
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
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
		Roles:        []domain.RoleCode{domain.RoleCustomer},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, user.ID, AuditUserRegistered, entityUser, user.ID, nil, map[string]any{"email": user.Email})

	return s.issue(user)
}

// Login checks credentials. Repeated failures for one email lock it out for
// the configured window.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewUnauthorized(MsgInvalidCredentials)
	}

	failures, err := s.attempts.Failures(ctx, email)
	if err != nil {
		return nil, err
	}
	if failures >= int64(s.maxFailures) {
		return nil, apperrors.NewTooManyAttempts(MsgTooManyAttempts, map[string]any{"retry_after_seconds": int(s.lockoutWindow.Seconds())})
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !isNoRows(err) {
		return nil, err
	}
	if user == nil || auth.ComparePassword(user.PasswordHash, password) != nil {
		count, recErr := s.attempts.RecordFailure(ctx, email, s.lockoutWindow)
		if recErr != nil {
			s.logger.Warn("failed to record login failure", zap.Error(recErr))
		}
		s.logger.Info("login rejected", zap.String("email", email), zap.Int64("failures", count))
		return nil, apperrors.NewUnauthorized(MsgInvalidCredentials)
	}
	if !user.IsActive() {
		return nil, apperrors.NewForbidden(MsgAccountDisabled)
	}
	if err := s.attempts.Reset(ctx, email); err != nil {
		s.logger.Warn("failed to reset login failures", zap.Error(err))
	}
	return s.issue(user)
}

// Me returns the caller's directory entry.
func (s *AuthService) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewUnauthorized(MsgUnauthenticated)
		}
		return nil, err
	}
	return user, nil
}

// RequestEmailVerification stores a one-time token and hands it to the
// notification channel. It returns the token's expiry.
func (s *AuthService) RequestEmailVerification(ctx context.Context, actor domain.Actor) (time.Time, error) {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return time.Time{}, err
	}
	if user.EmailVerified {
		return time.Time{}, apperrors.NewInvalidState(MsgEmailAlreadyVerified, nil)
	}

	token := uuid.NewString()
	expiresAt := s.clock.Now().Add(s.verificationTTL)
	if err := s.verifications.Put(ctx, token, user.ID, s.verificationTTL); err != nil {
		return time.Time{}, err
	}
	s.events.publish(ctx, events.Event{
		Type:       events.EventEmailVerificationSent,
		EntityType: entityUser,
		EntityID:   user.ID,
		ActorID:    user.ID,
		Audience:   events.Audience{UserIDs: []string{user.ID}},
		Payload: events.EmailVerificationPayload{
			UserID:    user.ID,
			Email:     user.Email,
			Token:     token,
			ExpiresAt: expiresAt,
		},
	})
	return expiresAt, nil
}

// ConfirmEmailVerification redeems a token and marks the owner verified.
func (s *AuthService) ConfirmEmailVerification(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewValidationError(MsgVerificationInvalid, nil)
	}
	userID, err := s.verifications.Consume(ctx, token)
	if err != nil {
		if err == auth.ErrTokenNotFound {
			return nil, apperrors.NewValidationError(MsgVerificationInvalid, nil)
		}
		return nil, err
	}
	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return nil, notFoundOr(err, MsgVerificationInvalid)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, userID, AuditEmailVerified, entityUser, userID,
		map[string]any{"email_verified": false}, map[string]any{"email_verified": true})
	return user, nil
}

// validateAccount normalizes and checks the fields shared by self-service
// signup and staff provisioning.
func validateAccount(v *validator.Validate, name, email, password string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return "", "", apperrors.NewValidationError(MsgNameRequired, nil)
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", "", apperrors.NewValidationError(MsgNameTooLong, map[string]any{"max": maxNameLength})
	case v.Var(email, "required,email") != nil:
		return "", "", apperrors.NewValidationError(MsgEmailInvalid, map[string]any{"email": email})
	case utf8.RuneCountInString(password) < minPasswordLength:
		return "", "", apperrors.NewValidationError(MsgPasswordTooShort, map[string]any{"min": minPasswordLength})
	}
	return name, email, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}
