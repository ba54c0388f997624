package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"limit-book/src/handlers"
	"limit-book/src/middleware"
)

func SetupRoutes(app *fiber.App, bookHandler *handlers.BookHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	serviceAvailability := middleware.DefaultServiceAvailability()
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", bookHandler.SubmitOrder)
	api.Delete("/orders/:id", bookHandler.CancelOrder)
	api.Get("/orders/:id", bookHandler.GetOrder)
	api.Get("/book", bookHandler.GetTopOfBook)
	api.Get("/book/depth", bookHandler.GetDepth)
	api.Get("/book/volume", bookHandler.GetVolume)

	app.Get("/health", bookHandler.HealthCheck)
	app.Get("/metrics", bookHandler.Metrics)
}
