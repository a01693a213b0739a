package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/service"
)

// TicketsHandler manages customer ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTemplates GET /tickets/templates.
func (h *TicketsHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.service.ListTemplates(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	items := make([]dto.TemplateResponse, 0, len(templates))
	for _, t := range templates {
		items = append(items, dto.TemplateResponse{
			Code:     t.Code,
			Subject:  t.Subject,
			Category: t.Category,
			Severity: t.Severity,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateCustomerTicket(c.UserContext(), auth.ActorFromContext(c), service.TicketCreateInput{
		TemplateCode: req.TemplateCode,
		Description:  req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	tickets, err := h.service.ListMyTickets(c.UserContext(), auth.ActorFromContext(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(tickets)})
}

// GetTicket GET /tickets/:id. Owners and staff see the ticket with its history.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor := auth.ActorFromContext(c)
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.UserContext(), actor, ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, history)})
}
