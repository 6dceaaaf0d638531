package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vibecodezero/subscriber-service/internal/api/http/handlers"
	"github.com/vibecodezero/subscriber-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Subscribers     *handlers.SubscribersHandler
	Admin           *handlers.AdminHandler
	AdminMiddleware *auth.AdminMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	api.Post("/subscribe", cfg.Subscribers.Subscribe)
	api.Post("/unsubscribe", cfg.Subscribers.Unsubscribe)
	api.Post("/admin/login", cfg.Admin.Login)

	protected := api.Group("/subscribers", cfg.AdminMiddleware.Handle)
	protected.Get("/", cfg.Subscribers.List)
	protected.Get("/stats", cfg.Subscribers.Stats)
}
