package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRoutes wires the admin surface named in §6's submission surface:
// stats, metrics, health, and the event stream. Adapted from the
// teacher's internal/api/routes.go, stripped of auth/billing/provider
// concerns that have no home in this domain.
func SetupRoutes(app *fiber.App, logger *zap.Logger, handlers *Handlers) {
	SetupMiddleware(app, logger)

	app.Get("/healthz", handlers.HealthCheck)
	app.Get("/readyz", handlers.ReadyCheck)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	v1.Get("/stats", handlers.Stats)
	v1.Get("/metrics", handlers.Metrics)
	v1.Get("/capabilities", handlers.Capabilities)
	v1.Get("/events", handlers.Events)

	app.Get("/docs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"title": "gopool admin API",
			"endpoints": fiber.Map{
				"health":       "GET /healthz - liveness",
				"ready":        "GET /readyz - readiness",
				"stats":        "GET /v1/stats - worker/queue/circuit snapshot",
				"metrics_json": "GET /v1/metrics - metricscore.Snapshot as JSON",
				"metrics_prom": "GET /metrics - Prometheus exposition",
				"capabilities": "GET /v1/capabilities - enabled pool options",
				"events":       "GET /v1/events - SSE event stream",
			},
		})
	})
}
