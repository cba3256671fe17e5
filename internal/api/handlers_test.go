package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"gopool"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type nopExecutor struct{}

func (nopExecutor) Invoke(ctx context.Context, method string, params []any) (any, error) {
	return nil, nil
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	p, err := gopool.New(gopool.DefaultOptions(), nopExecutor{}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return NewHandlers(zap.NewNop(), p)
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandlers(t)
	app := fiber.New()
	app.Get("/healthz", h.HealthCheck)

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReadyCheck(t *testing.T) {
	h := newTestHandlers(t)
	app := fiber.New()
	app.Get("/readyz", h.ReadyCheck)

	resp, err := app.Test(httptest.NewRequest("GET", "/readyz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200 once Ready() has fired, got %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	h := newTestHandlers(t)
	app := fiber.New()
	app.Get("/v1/stats", h.Stats)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/stats", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCapabilities(t *testing.T) {
	h := newTestHandlers(t)
	app := fiber.New()
	app.Get("/v1/capabilities", h.Capabilities)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/capabilities", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
