package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/catalog"
	"github.com/KaramelBytes/salesloom/internal/logging"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/translate"
)

// Version is reported by /health.
var Version = "dev"

type Handler struct {
	registry *catalog.Registry
	table    *sales.Table
	timeout  time.Duration
}

// NewHandler serves the catalog over t. timeout bounds each invocation,
// which matters for translated questions.
func NewHandler(registry *catalog.Registry, t *sales.Table, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{registry: registry, table: t, timeout: timeout}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now(),
		Dataset: DatasetStats{
			Name:     h.table.Name(),
			Rows:     h.table.Len(),
			Columns:  h.table.Columns(),
			Warnings: h.table.Warnings(),
		},
	})
}

// ListOperations returns the catalog, or the function-calling schemas with
// ?format=tools.
func (h *Handler) ListOperations(c *fiber.Ctx) error {
	if c.Query("format") == "tools" {
		return c.JSON(fiber.Map{"tools": h.registry.ToolSpecs()})
	}
	return c.JSON(fiber.Map{"operations": h.registry.Operations()})
}

func (h *Handler) InvokeOperation(c *fiber.Ctx) error {
	name := c.Params("name")
	args := map[string]any{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&args); err != nil {
			return h.fail(c, fiber.StatusBadRequest, "request body must be a JSON object of arguments")
		}
	}
	for k, v := range c.Queries() {
		if _, ok := args[k]; !ok {
			args[k] = v
		}
	}
	return h.invoke(c, name, args)
}

func (h *Handler) Ask(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil || req.Question == "" {
		return h.fail(c, fiber.StatusBadRequest, "question is required")
	}
	return h.invoke(c, "consulta_geral", map[string]any{"pergunta": req.Question})
}

// Report returns the executive report as plain text, or JSON with ?format=json.
func (h *Handler) Report(c *fiber.Ctx) error {
	args := map[string]any{}
	if n := c.Query("top_n"); n != "" {
		if _, err := strconv.Atoi(n); err != nil {
			return h.fail(c, fiber.StatusBadRequest, "top_n must be an integer")
		}
		args["top_n"] = n
	}
	if c.Query("format") == "json" {
		return h.invoke(c, "gerar_relatorio", args)
	}
	res, err := h.run(c, "gerar_relatorio", args)
	if err != nil {
		return h.failErr(c, "gerar_relatorio", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(res.Text)
}

func (h *Handler) invoke(c *fiber.Ctx, name string, args map[string]any) error {
	res, err := h.run(c, name, args)
	if err != nil {
		return h.failErr(c, name, err)
	}
	return c.JSON(res)
}

func (h *Handler) run(c *fiber.Ctx, name string, args map[string]any) (*catalog.Result, error) {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()
	return h.registry.Invoke(ctx, name, args)
}

func (h *Handler) failErr(c *fiber.Ctx, name string, err error) error {
	logging.WithContext(c.UserContext()).Debug("invocation failed", zap.String("operation", name), zap.Error(err))
	return h.fail(c, statusFor(err), catalog.FailureMessage(name, err))
}

func (h *Handler) fail(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

func statusFor(err error) int {
	var perr *catalog.ParamError
	switch {
	case errors.Is(err, catalog.ErrUnknownOperation):
		return fiber.StatusNotFound
	case errors.As(err, &perr),
		errors.Is(err, analytics.ErrInvalidParam),
		errors.Is(err, analytics.ErrInvalidDate):
		return fiber.StatusBadRequest
	case errors.Is(err, sales.ErrInvalidColumn):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, translate.ErrTranslation):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
