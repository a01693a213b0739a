package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/service"
)

// SupportSessionsHandler serves the live support chat endpoints.
type SupportSessionsHandler struct {
	sessions *service.SupportSessionService
}

// NewSupportSessionsHandler constructs handler.
func NewSupportSessionsHandler(sessions *service.SupportSessionService) *SupportSessionsHandler {
	return &SupportSessionsHandler{sessions: sessions}
}

// OpenOrGet POST /support/sessions. 201 when a session was created, 200 when reused.
func (h *SupportSessionsHandler) OpenOrGet(c *fiber.Ctx) error {
	var req dto.OpenSessionRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.sessions.OpenOrGet(c.UserContext(), auth.ActorFromContext(c), service.OpenSessionInput{
		InitialMessage: req.InitialMessage,
		PriorityLevel:  req.PriorityLevel,
	})
	if err != nil {
		return err
	}

	body := dto.OpenSessionResponse{
		Session:                  dto.NewSessionResponse(res.Session),
		Created:                  res.Created,
		HasPreviousClosedSession: res.HasPreviousClosedSession,
		LastClosedSessionID:      res.LastClosedSessionID,
		LastClosedAt:             res.LastClosedAt,
	}
	if res.Message != nil {
		msg := dto.NewMessageResponse(res.Message)
		body.Message = &msg
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": body})
}

// ListMine GET /support/sessions/mine.
func (h *SupportSessionsHandler) ListMine(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	sessions, err := h.sessions.ListMine(c.UserContext(), auth.ActorFromContext(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponses(sessions)})
}

// ListQueue GET /support/sessions/queue?status=WAITING,ACTIVE.
func (h *SupportSessionsHandler) ListQueue(c *fiber.Ctx) error {
	var statuses []domain.SessionStatus
	for _, part := range splitQuery(c.Query("status")) {
		statuses = append(statuses, domain.SessionStatus(part))
	}
	limit, offset := pagination(c)
	sessions, err := h.sessions.ListQueue(c.UserContext(), auth.ActorFromContext(c), statuses, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponses(sessions)})
}

// Get GET /support/sessions/:id.
func (h *SupportSessionsHandler) Get(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// Claim POST /support/sessions/:id/claim.
func (h *SupportSessionsHandler) Claim(c *fiber.Ctx) error {
	session, err := h.sessions.Claim(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// Unassign POST /support/sessions/:id/unassign.
func (h *SupportSessionsHandler) Unassign(c *fiber.Ctx) error {
	session, err := h.sessions.Unassign(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// Close POST /support/sessions/:id/close.
func (h *SupportSessionsHandler) Close(c *fiber.Ctx) error {
	if _, err := h.sessions.Close(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListMessages GET /support/sessions/:id/messages.
func (h *SupportSessionsHandler) ListMessages(c *fiber.Ctx) error {
	messages, err := h.sessions.ListMessages(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, dto.NewMessageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// PostMessage POST /support/sessions/:id/messages.
func (h *SupportSessionsHandler) PostMessage(c *fiber.Ctx) error {
	var req dto.PostMessageRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	msg, err := h.sessions.PostMessage(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// AdminAssign POST /admin/support/sessions/:id/assign.
func (h *SupportSessionsHandler) AdminAssign(c *fiber.Ctx) error {
	var req dto.StaffAssignRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.AdminAssignStaff(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// AdminTransfer POST /admin/support/sessions/:id/transfer.
func (h *SupportSessionsHandler) AdminTransfer(c *fiber.Ctx) error {
	var req dto.StaffAssignRequest
	if err := dto.Bind(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.AdminTransferStaff(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}
