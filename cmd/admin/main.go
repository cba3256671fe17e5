// Command admin runs the HTTP admin surface of §6 (stats, metrics,
// health, event stream) in front of a Pool. In this standalone binary
// the pool uses a local echo executor that returns each call's params; a real
// deployment would instead embed internal/api into the process that
// owns the Pool it's exposing. Adapted from the teacher's cmd/api/main.go.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopool"
	"gopool/internal/api"
	"gopool/internal/config"
	"gopool/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type echoExecutor struct{}

func (echoExecutor) Invoke(ctx context.Context, method string, params []any) (any, error) {
	return params, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	logger.Info("starting gopool admin server")

	opts := gopool.DefaultOptions()
	opts.MaxWorkers = 4
	opts.EagerInit = true
	opts.Health.Enabled = true

	pool, err := gopool.New(opts, echoExecutor{}, logger)
	if err != nil {
		log.Fatalf("failed to construct pool: %v", err)
	}

	handlers := api.NewHandlers(logger, pool)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("fiber error", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
		},
	})
	api.SetupRoutes(app, logger, handlers)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("failed to start admin server: %v", err)
		}
	}()
	logger.Info("gopool admin server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("failed to shut down admin server gracefully", zap.Error(err))
	}
	if err := pool.Terminate(false, 10*time.Second); err != nil {
		logger.Error("failed to terminate pool gracefully", zap.Error(err))
	}
	logger.Info("gopool admin server stopped")
}
