package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/avatair-api/internal/config"
	"github.com/noah-isme/avatair-api/internal/handler"
	"github.com/noah-isme/avatair-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ResponseHandler *handler.ResponseHandler
	AvatarHandler   *handler.AvatarHandler
	SurveyHandler   *handler.SurveyHandler
	AdminHandler    *handler.AdminHandler
	Guards          handler.Guards
	HealthProbes    map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.ResponseHandler != nil {
		deps.ResponseHandler.Register(api.Group("/responses"), deps.Guards)
	}
	if deps.AvatarHandler != nil {
		deps.AvatarHandler.Register(api.Group("/avatar"), deps.Guards)
	}
	if deps.SurveyHandler != nil {
		deps.SurveyHandler.Register(api.Group("/surveys"), deps.Guards)
	}
	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(api.Group("/admin"), deps.Guards)
	}
}
