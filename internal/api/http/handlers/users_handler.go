package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/service"
)

// UsersHandler exposes auth endpoints for every account type.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(res)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(res)})
}

// Me handles GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, err := h.auth.Me(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// RequestEmailVerification handles POST /auth/email/verify/request.
func (h *UsersHandler) RequestEmailVerification(c *fiber.Ctx) error {
	expiresAt, err := h.auth.RequestEmailVerification(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"expires_at": expiresAt},
	})
}

// ConfirmEmailVerification handles POST /auth/email/verify/confirm.
func (h *UsersHandler) ConfirmEmailVerification(c *fiber.Ctx) error {
	var req dto.VerifyEmailConfirmRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	user, err := h.auth.ConfirmEmailVerification(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

func authResponse(res *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      dto.NewUserResponse(res.User),
	}
}
