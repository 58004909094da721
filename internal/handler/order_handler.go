package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// OrderHandler handles order placement and tracking
type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Place handles POST /api/orders
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req service.PlaceOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.UserAgent = c.Get(fiber.HeaderUserAgent)
	req.IPAddress = c.IP()

	order, err := h.orders.PlaceOrder(c.UserContext(), user.ID, req)
	if err != nil {
		return err
	}
	return created(c, order)
}

// List handles GET /api/orders?status=&page=&limit=
func (h *OrderHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	result, err := h.orders.ListOrders(c.UserContext(), user.ID, c.Query("status"), page, limit)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// Get handles GET /api/orders/:id
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	order, err := h.orders.GetOrder(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, order)
}

// Stats handles GET /api/orders/stats/dashboard
func (h *OrderHandler) Stats(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	stats, err := h.orders.UserStats(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return ok(c, stats)
}

// ListAll handles GET /api/orders/admin/all (admin)
func (h *OrderHandler) ListAll(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	result, err := h.orders.ListAll(c.UserContext(), c.Query("status"), page, limit)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// UpdateStatus handles PUT /api/orders/:id/status (admin)
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var update domain.OrderStatusUpdate
	if err := parseBody(c, &update); err != nil {
		return err
	}
	order, err := h.orders.UpdateOrderStatus(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return err
	}
	return ok(c, order)
}
