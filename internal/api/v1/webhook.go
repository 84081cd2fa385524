package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/integration/stripe/webhook"
	"github.com/meterline/meterline/internal/logger"
)

// WebhookHandler terminates gateway webhooks. Authentication is the
// payload signature, not a bearer token.
type WebhookHandler struct {
	webhooks *webhook.Handler
	logger   *logger.Logger
}

func NewWebhookHandler(webhooks *webhook.Handler, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := h.webhooks.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.webhooks.HandleEvent(c.Request.Context(), event); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
