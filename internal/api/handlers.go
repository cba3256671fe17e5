// Package api is the admin HTTP surface of §6's external interfaces: stats,
// metrics, and health over a running Pool. Adapted from the teacher's
// Fiber handlers (internal/api/handlers.go), generalised from SMS
// submission endpoints to pool introspection endpoints.
package api

import (
	"bufio"
	"encoding/json"
	"time"

	"gopool"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handlers struct {
	logger *zap.Logger
	pool   *gopool.Pool
}

func NewHandlers(logger *zap.Logger, pool *gopool.Pool) *Handlers {
	return &Handlers{logger: logger, pool: pool}
}

// HealthCheck handles GET /healthz.
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 once the process is accepting connections
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/healthz [get]
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadyCheck handles GET /readyz.
//
//	@Summary		Readiness probe
//	@Description	Returns 200 once Pool.Ready() has fired
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	map[string]string
//	@Router			/readyz [get]
func (h *Handlers) ReadyCheck(c *fiber.Ctx) error {
	select {
	case <-h.pool.Ready():
		return c.JSON(fiber.Map{"status": "ready"})
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "warming_up"})
	}
}

// Stats handles GET /v1/stats.
//
//	@Summary		Pool snapshot
//	@Description	Worker counts, queue depth, and circuit state
//	@Tags			Pool
//	@Produce		json
//	@Success		200	{object}	gopool.Stats
//	@Router			/v1/stats [get]
func (h *Handlers) Stats(c *fiber.Ctx) error {
	return c.JSON(h.pool.Stats())
}

// Metrics handles GET /v1/metrics — the Collector's JSON snapshot, distinct
// from GET /metrics (Prometheus exposition, mounted separately).
//
//	@Summary		Metrics snapshot
//	@Description	Histogram percentiles and accumulators as JSON
//	@Tags			Pool
//	@Produce		json
//	@Success		200	{object}	metricscore.Snapshot
//	@Router			/v1/metrics [get]
func (h *Handlers) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.pool.GetMetrics())
}

// Capabilities handles GET /v1/capabilities.
//
//	@Summary		Enabled capabilities
//	@Description	Enumerates the options this pool build was constructed with
//	@Tags			Pool
//	@Produce		json
//	@Success		200	{array}	string
//	@Router			/v1/capabilities [get]
func (h *Handlers) Capabilities(c *fiber.Ctx) error {
	return c.JSON(h.pool.GetCapabilities())
}

// Events handles GET /v1/events — a server-sent-event stream of pool
// events (§6), useful for a live admin dashboard tailing taskStart/
// taskComplete/retry/circuit transitions without polling Stats.
//
//	@Summary		Event stream
//	@Description	Server-sent events: taskStart, taskComplete, taskError, retry, circuitOpen, circuitClose, circuitHalfOpen, workerSpawn, workerExit, workerError, queueFull, memoryPressure
//	@Tags			Pool
//	@Produce		text/event-stream
//	@Success		200
//	@Router			/v1/events [get]
func (h *Handlers) Events(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	names := []gopool.EventName{
		gopool.EventTaskStart, gopool.EventTaskComplete, gopool.EventTaskError,
		gopool.EventRetry, gopool.EventCircuitOpen, gopool.EventCircuitClose,
		gopool.EventCircuitHalfOpen, gopool.EventWorkerSpawn, gopool.EventWorkerExit,
		gopool.EventWorkerError, gopool.EventQueueFull, gopool.EventMemoryPressure,
	}

	ch := make(chan gopool.Event, 64)
	ids := make([]int64, len(names))
	for i, n := range names {
		i, n := i, n
		ids[i] = h.pool.On(n, func(ev gopool.Event) {
			select {
			case ch <- ev:
			default:
				h.logger.Warn("dropping event, admin SSE client too slow", zap.String("event", string(n)))
			}
		})
	}
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			for i, n := range names {
				h.pool.Off(n, ids[i])
			}
		}()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case ev := <-ch:
				b, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := w.Write(append(append([]byte("data: "), b...), '\n', '\n')); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}
