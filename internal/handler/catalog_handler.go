package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// CatalogHandler serves the service catalog
type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List handles GET /api/services?platform=&category=&page=&limit=
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	filter := domain.ServiceFilter{
		Platform: c.Query("platform"),
		Category: c.Query("category"),
	}
	page, limit := pageParams(c)

	result, err := h.catalog.ListActive(c.UserContext(), filter, page, limit)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// Platforms handles GET /api/services/platforms
func (h *CatalogHandler) Platforms(c *fiber.Ctx) error {
	platforms, err := h.catalog.Platforms(c.UserContext())
	if err != nil {
		return err
	}
	if platforms == nil {
		platforms = []domain.PlatformSummary{}
	}
	return ok(c, platforms)
}

// Get handles GET /api/services/:id (active services only)
func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	svc, err := h.catalog.LookupActive(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, svc)
}

// Create handles POST /api/services (admin)
func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	var svc domain.Service
	if err := parseBody(c, &svc); err != nil {
		return err
	}
	result, err := h.catalog.Create(c.UserContext(), &svc)
	if err != nil {
		return err
	}
	return created(c, result)
}

// Update handles PUT /api/services/:id (admin)
func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	var update domain.ServiceUpdate
	if err := parseBody(c, &update); err != nil {
		return err
	}
	result, err := h.catalog.Update(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// Deactivate handles DELETE /api/services/:id (admin, soft delete)
func (h *CatalogHandler) Deactivate(c *fiber.Ctx) error {
	if err := h.catalog.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return ok(c, fiber.Map{"message": "service deactivated"})
}

// Seed handles POST /api/admin/services/seed
func (h *CatalogHandler) Seed(c *fiber.Ctx) error {
	services, err := h.catalog.SeedDefaults(c.UserContext())
	if err != nil {
		return err
	}
	return created(c, fiber.Map{"count": len(services), "services": services})
}
