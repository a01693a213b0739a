package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/service"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// TiersHandler serves one priority tier catalog: support plans or loyalty rules.
type TiersHandler struct {
	tiers *service.PriorityTierService
}

// NewTiersHandler constructs handler.
func NewTiersHandler(tiers *service.PriorityTierService) *TiersHandler {
	return &TiersHandler{tiers: tiers}
}

// List GET /admin/<catalog>?active=true.
func (h *TiersHandler) List(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)
	rows, err := h.tiers.List(c.UserContext(), auth.ActorFromContext(c), activeOnly)
	if err != nil {
		return err
	}
	items := make([]dto.TierResponse, 0, len(rows))
	for i := range rows {
		items = append(items, dto.NewTierResponse(&rows[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /admin/<catalog>.
func (h *TiersHandler) Create(c *fiber.Ctx) error {
	var req dto.TierRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	tier, err := h.tiers.Create(c.UserContext(), auth.ActorFromContext(c), tierInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTierResponse(tier)})
}

// Update PUT /admin/<catalog>/:id. The active flag is changed through Toggle only.
func (h *TiersHandler) Update(c *fiber.Ctx) error {
	var req dto.TierRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	tier, err := h.tiers.Update(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), tierInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTierResponse(tier)})
}

// Toggle POST /admin/<catalog>/:id/toggle.
func (h *TiersHandler) Toggle(c *fiber.Ctx) error {
	tier, err := h.tiers.Toggle(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTierResponse(tier)})
}

// Resolve GET /loyalty-rules/resolve?total_spend=.
func (h *TiersHandler) Resolve(c *fiber.Ctx) error {
	spend, err := strconv.ParseInt(c.Query("total_spend", "0"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError(dto.MsgInvalidPayload, map[string]any{"total_spend": c.Query("total_spend")})
	}
	res, err := h.tiers.ResolveLoyaltyLevel(c.UserContext(), auth.ActorFromContext(c), spend)
	if err != nil {
		return err
	}
	body := dto.LoyaltyResolutionResponse{TotalSpend: spend, PriorityLevel: res.PriorityLevel}
	if res.Rule != nil {
		rule := dto.NewTierResponse(res.Rule)
		body.Rule = &rule
	}
	return c.JSON(fiber.Map{"data": body})
}

func tierInput(req dto.TierRequest) service.TierInput {
	return service.TierInput{
		Name:          req.Name,
		Description:   req.Description,
		PriorityLevel: req.PriorityLevel,
		Threshold:     req.Threshold,
		IsActive:      req.IsActive,
	}
}
