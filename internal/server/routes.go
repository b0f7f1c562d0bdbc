package server

import (
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New builds the fiber app with every route mounted.
func New(handler *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "salesloom",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             1 * 1024 * 1024,
	})
	app.Use(recover.New())
	SetupRoutes(app, handler)
	return app
}

func SetupRoutes(app *fiber.App, handler *Handler) {
	app.Use(RequestID())
	app.Use(ErrorHandler())

	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")
	v1.Use(PrometheusMiddleware())
	v1.Get("/operations", handler.ListOperations)
	v1.Post("/operations/:name", handler.InvokeOperation)
	v1.Get("/report", handler.Report)
	// translated questions hit an external model
	v1.Post("/ask", RateLimiter(), handler.Ask)
}

func RateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               30,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:     "Too many requests",
				Code:      fiber.StatusTooManyRequests,
				RequestID: requestID(c),
				Timestamp: time.Now(),
			})
		},
	})
}
