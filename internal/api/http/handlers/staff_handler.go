package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/service"
)

// StaffHandler exposes admin staff directory endpoints.
type StaffHandler struct {
	staff *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{staff: staffService}
}

// ListStaff GET /admin/staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	users, err := h.staff.ListStaff(c.UserContext(), auth.ActorFromContext(c), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateStaff POST /admin/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.StaffCreateRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	user, err := h.staff.CreateStaff(c.UserContext(), auth.ActorFromContext(c), service.StaffCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// SetStatus PATCH /admin/users/:id/status.
func (h *StaffHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.UserStatusRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	user, err := h.staff.SetStatus(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
