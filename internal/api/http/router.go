package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Queue          *handlers.QueueHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/requesters/register", cfg.Auth.RegisterRequester)
	authGroup.Post("/requesters/login", cfg.Auth.LoginRequester)
	authGroup.Post("/technicians/login", cfg.Auth.LoginTechnician)

	// Requester surface. Create is open to any authenticated principal so
	// technicians and admins can file on a requester's behalf.
	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", auth.RequireRequester(), cfg.Tickets.List)
	tickets.Get("/:id", auth.RequireRequester(), cfg.Tickets.Get)

	// Technician surface.
	queue := app.Group("/queue", cfg.AuthMiddleware.Handle, auth.RequireTechnician())
	queue.Get("/tickets", cfg.Queue.List)
	queue.Get("/tickets/:id", cfg.Queue.Get)
	queue.Post("/tickets/:id/claim", cfg.Queue.Claim)
	queue.Post("/tickets/:id/auto-assign", auth.RequireRole(domain.RoleAdmin), cfg.Queue.AutoAssign)
	queue.Post("/tickets/:id/resolve", cfg.Queue.Resolve)
	queue.Post("/tickets/:id/close", cfg.Queue.Close)
	queue.Post("/tickets/:id/escalate", cfg.Queue.Escalate)
	queue.Post("/tickets/:id/request-approval", cfg.Queue.RequestApproval)
	queue.Post("/tickets/:id/comments", cfg.Queue.AddComment)
	queue.Get("/tickets/:id/history", cfg.Queue.ListHistory)
	queue.Get("/tickets/:id/reports", cfg.Reports.ListForTicket)
	queue.Put("/availability", cfg.Queue.SetAvailability)

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle, auth.RequireTechnician())
	reports.Post("", cfg.Reports.Submit)
	reports.Get("", cfg.Reports.ListMine)
	reports.Get("/:id", cfg.Reports.Get)
}
