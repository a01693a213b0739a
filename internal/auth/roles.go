package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/domain"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// RequireCapability ensures the principal holds at least one of the capabilities.
func RequireCapability(allowed ...domain.Capability) fiber.Handler {
	required := domain.NewCapabilitySet(allowed...)

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if required != 0 && principal.Actor.Capabilities&required == 0 {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal was resolved.
func RequireAuthenticated() fiber.Handler {
	return RequireCapability()
}
