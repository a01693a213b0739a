package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User  *domain.User
	Actor domain.Actor
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.Resolve(c.UserContext(), parts[1])
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// Resolve turns a raw token into a principal. The user is loaded from the
// directory so disabled accounts and role changes take effect immediately.
func (m *AuthMiddleware) Resolve(ctx context.Context, token string) (*Principal, error) {
	claims, err := m.tokens.ParseToken(strings.TrimSpace(token))
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive() {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	return &Principal{User: user, Actor: domain.NewActor(user)}, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ActorFromContext returns the caller, or the zero Actor for anonymous requests.
func ActorFromContext(c *fiber.Ctx) domain.Actor {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}
	}
	return principal.Actor
}
