package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"limit-book/src/middleware"
)

func newGatedApp(sa *middleware.ServiceAvailability) *fiber.App {
	app := fiber.New()
	app.Use(sa.Middleware())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/v1/book", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestMaintenanceModeBlocksRequests(t *testing.T) {
	sa := middleware.NewServiceAvailability(0)
	sa.SetMaintenanceMode(true)
	app := newGatedApp(sa)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 in maintenance mode, got: %d", resp.StatusCode)
	}
}

// edge case: health check must keep working during maintenance
func TestMaintenanceModeAllowsHealthCheck(t *testing.T) {
	sa := middleware.NewServiceAvailability(0)
	sa.SetMaintenanceMode(true)
	app := newGatedApp(sa)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for health check during maintenance, got: %d", resp.StatusCode)
	}
}

func TestNormalOperationPassesThrough(t *testing.T) {
	sa := middleware.NewServiceAvailability(0)
	app := newGatedApp(sa)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/book", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got: %d", resp.StatusCode)
	}
	if sa.GetInFlightRequests() != 0 {
		t.Errorf("In-flight counter should return to 0, got: %d", sa.GetInFlightRequests())
	}
}
