package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/service"
)

// StaffTicketsHandler handles the staff ticket queue and assignment workflow.
type StaffTicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService, assignmentService *service.AssignmentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService, assignments: assignmentService}
}

// ListStaffTickets GET /staff/tickets.
func (h *StaffTicketsHandler) ListStaffTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListStaffTickets(c.UserContext(), auth.ActorFromContext(c), parseStaffTicketFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(tickets)})
}

// AssignToMe POST /staff/tickets/:id/assign-to-me.
func (h *StaffTicketsHandler) AssignToMe(c *fiber.Ctx) error {
	ticket, err := h.assignments.AssignToMe(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// TransferToTech POST /staff/tickets/:id/transfer-tech.
func (h *StaffTicketsHandler) TransferToTech(c *fiber.Ctx) error {
	var req dto.TransferTicketRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignments.TransferToTech(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.NewAssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Complete POST /staff/tickets/:id/complete.
func (h *StaffTicketsHandler) Complete(c *fiber.Ctx) error {
	ticket, err := h.assignments.CompleteTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

func parseStaffTicketFilter(c *fiber.Ctx) service.TicketStaffFilter {
	filter := service.TicketStaffFilter{}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	for _, part := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
	}
	if state := c.Query("assignment_state"); state != "" {
		s := domain.AssignmentState(state)
		filter.AssignmentState = &s
	}
	for _, part := range splitQuery(c.Query("severity")) {
		filter.Severities = append(filter.Severities, domain.TicketSeverity(part))
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	filter.Limit, filter.Offset = pagination(c)
	return filter
}
