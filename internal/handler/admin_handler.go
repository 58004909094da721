package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// AdminHandler handles the admin reporting endpoints
type AdminHandler struct {
	dashboard *service.DashboardService
	payments  *service.PaymentService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(dashboard *service.DashboardService, payments *service.PaymentService) *AdminHandler {
	return &AdminHandler{
		dashboard: dashboard,
		payments:  payments,
	}
}

// Dashboard handles GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	dash, err := h.dashboard.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, dash)
}

// Analytics handles GET /api/admin/analytics?period=7d|30d|90d
func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	report, err := h.dashboard.Analytics(c.UserContext(), c.Query("period", "30d"))
	if err != nil {
		return err
	}
	return ok(c, report)
}

// SystemInfo handles GET /api/admin/system/info
func (h *AdminHandler) SystemInfo(c *fiber.Ctx) error {
	return ok(c, h.dashboard.SystemInfo())
}

// GatewayBalance handles GET /api/admin/gateway/balance
func (h *AdminHandler) GatewayBalance(c *fiber.Ctx) error {
	wallets, err := h.payments.GatewayBalance(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, wallets)
}
