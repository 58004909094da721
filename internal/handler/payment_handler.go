package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// PaymentHandler handles payment-related API endpoints
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create handles POST /api/payments/create
// Opens a gateway checkout, optionally for an unpaid order
func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req service.CreateCheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.UserAgent = c.Get(fiber.HeaderUserAgent)
	req.IPAddress = c.IP()

	result, err := h.payments.CreateCheckout(c.UserContext(), user.ID, req)
	if err != nil {
		return err
	}
	return created(c, result)
}

// AddFunds handles POST /api/payments/add-funds
func (h *PaymentHandler) AddFunds(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req service.AddFundsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.UserAgent = c.Get(fiber.HeaderUserAgent)
	req.IPAddress = c.IP()

	result, err := h.payments.AddFunds(c.UserContext(), user.ID, req)
	if err != nil {
		return err
	}
	return created(c, result)
}

// History handles GET /api/payments/history
func (h *PaymentHandler) History(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	result, err := h.payments.History(c.UserContext(), user.ID, page, limit)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// Get handles GET /api/payments/:id
func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	payment, err := h.payments.GetPayment(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, payment)
}

// Sync handles POST /api/payments/:id/sync
// Pulls the checkout state from the gateway when a webhook was missed
func (h *PaymentHandler) Sync(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	payment, err := h.payments.SyncPayment(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, payment)
}
