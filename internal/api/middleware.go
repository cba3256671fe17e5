package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// SetupMiddleware carries over the teacher's ambient HTTP stack
// (internal/api/middleware.go) unchanged in shape: panic recovery,
// request IDs, permissive CORS for the admin dashboard, and structured
// request logging. The auth/rate-limit middleware stages are dropped —
// this is an operator-facing admin surface, not the public submission
// surface exec() already gates via the circuit breaker and memory guard.
func SetupMiddleware(app *fiber.App, logger *zap.Logger) {
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("http_request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Get("X-Request-ID")),
		)
		return err
	})
}
