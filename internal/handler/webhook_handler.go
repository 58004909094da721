package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "signature"

// WebhookHandler handles gateway webhooks
type WebhookHandler struct {
	payments *service.PaymentService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(payments *service.PaymentService) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// Chargily handles POST /api/payments/webhook
// This is a public endpoint - authenticity comes from the signature only.
// The body is read raw: re-encoding JSON would change the signed bytes.
func (h *WebhookHandler) Chargily(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	result, err := h.payments.HandleWebhook(c.UserContext(), c.Get(SignatureHeader), payload)
	if err != nil {
		return err
	}
	return ok(c, result)
}
