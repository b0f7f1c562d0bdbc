package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom/internal/logging"
	"github.com/KaramelBytes/salesloom/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, echoed in the response header and
// carried in the user context for logging.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Locals("requestID", id)
		c.SetUserContext(logging.WithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		timer := metrics.NewTimer()

		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		code := strconv.Itoa(status)
		timer.ObserveDuration(metrics.HTTPDuration.WithLabelValues(c.Method(), c.Route().Path, code))
		metrics.HTTPRequests.WithLabelValues(c.Method(), c.Route().Path, code).Inc()
		return err
	}
}

// ErrorHandler renders errors that escaped the handlers as ErrorResponse.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logging.WithContext(c.UserContext()).Error("request failed", zap.Error(err), zap.String("path", c.Path()))
		}
		return c.Status(code).JSON(ErrorResponse{
			Error:     message,
			Code:      code,
			RequestID: requestID(c),
			Timestamp: time.Now(),
		})
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestID").(string)
	return id
}
