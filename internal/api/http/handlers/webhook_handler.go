package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/bot"
	"github.com/spec-kit/support-bot/internal/telegram"
)

// WebhookHandler receives Bot API updates. Telegram retries any non-200
// response, so the handler acknowledges every parsable update and never
// lets a processing failure escape as a status code.
type WebhookHandler struct {
	router *bot.Router
	logger *zap.Logger
}

// NewWebhookHandler returns a new handler instance.
func NewWebhookHandler(router *bot.Router, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{router: router, logger: logger}
}

// Receive parses and dispatches one update.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var update telegram.Update
	if err := c.BodyParser(&update); err != nil {
		h.logger.Warn("unparsable webhook payload", zap.Error(err))
		return c.SendStatus(fiber.StatusOK)
	}

	h.router.HandleUpdate(c.UserContext(), update)
	return c.SendStatus(fiber.StatusOK)
}
