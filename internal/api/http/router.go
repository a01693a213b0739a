package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/http/handlers"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Sessions       *handlers.SupportSessionsHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	SupportPlans   *handlers.TiersHandler
	LoyaltyRules   *handlers.TiersHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Capability checks here are coarse; the
// services enforce the precise rules.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/email/verify/confirm", cfg.Users.ConfirmEmailVerification)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Post("/auth/email/verify/request", cfg.Users.RequestEmailVerification)
	protected.Get("/me", cfg.Users.Me)

	sessions := protected.Group("/support/sessions")
	sessions.Post("/", cfg.Sessions.OpenOrGet)
	sessions.Get("/mine", cfg.Sessions.ListMine)
	sessions.Get("/queue", auth.RequireCapability(domain.CapabilityStaff), cfg.Sessions.ListQueue)
	sessions.Get("/:id", cfg.Sessions.Get)
	sessions.Post("/:id/claim", cfg.Sessions.Claim)
	sessions.Post("/:id/unassign", cfg.Sessions.Unassign)
	sessions.Post("/:id/close", cfg.Sessions.Close)
	sessions.Get("/:id/messages", cfg.Sessions.ListMessages)
	sessions.Post("/:id/messages", cfg.Sessions.PostMessage)

	tickets := protected.Group("/tickets")
	tickets.Get("/templates", cfg.Tickets.ListTemplates)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)

	staff := protected.Group("/staff", auth.RequireCapability(domain.CapabilityStaff))
	staff.Get("/tickets", cfg.StaffTickets.ListStaffTickets)
	staff.Post("/tickets/:id/assign-to-me", cfg.StaffTickets.AssignToMe)
	staff.Post("/tickets/:id/transfer-tech", cfg.StaffTickets.TransferToTech)
	staff.Post("/tickets/:id/complete", cfg.StaffTickets.Complete)

	protected.Get("/loyalty-rules/resolve", cfg.LoyaltyRules.Resolve)

	admin := protected.Group("/admin", auth.RequireCapability(domain.CapabilityAdmin))
	admin.Post("/support/sessions/:id/assign", cfg.Sessions.AdminAssign)
	admin.Post("/support/sessions/:id/transfer", cfg.Sessions.AdminTransfer)
	registerTierRoutes(admin.Group("/support-plans"), cfg.SupportPlans)
	registerTierRoutes(admin.Group("/loyalty-rules"), cfg.LoyaltyRules)
	admin.Get("/staff", cfg.Staff.ListStaff)
	admin.Post("/staff", cfg.Staff.CreateStaff)
	admin.Patch("/users/:id/status", cfg.Staff.SetStatus)
}

func registerTierRoutes(group fiber.Router, h *handlers.TiersHandler) {
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Put("/:id", h.Update)
	group.Post("/:id/toggle", h.Toggle)
}
