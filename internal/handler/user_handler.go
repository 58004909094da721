package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// UserHandler handles profile and account administration endpoints
type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile handles GET /api/users/profile
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	profile, err := h.userService.Profile(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return ok(c, profile)
}

// UpdateProfile handles PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var update domain.ProfileUpdate
	if err := parseBody(c, &update); err != nil {
		return err
	}
	profile, err := h.userService.UpdateProfile(c.UserContext(), user.ID, update)
	if err != nil {
		return err
	}
	return ok(c, profile)
}

// GetBalance handles GET /api/users/balance
func (h *UserHandler) GetBalance(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	balance, err := h.userService.Balance(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return ok(c, balance)
}

// ChangePassword handles PUT /api/users/password
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req service.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.userService.ChangePassword(c.UserContext(), user.ID, req); err != nil {
		return err
	}
	return ok(c, fiber.Map{"message": "password updated"})
}

// ListUsers handles GET /api/users/admin/all
// Query: role, status (active|inactive), search, page, limit
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	filter := domain.UserFilter{
		Role:   c.Query("role"),
		Search: c.Query("search"),
	}
	switch strings.ToLower(c.Query("status")) {
	case "active":
		active := true
		filter.IsActive = &active
	case "inactive":
		inactive := false
		filter.IsActive = &inactive
	case "":
	default:
		return domain.NewValidationError("status", "status must be active or inactive")
	}

	page, limit := pageParams(c)
	result, err := h.userService.List(c.UserContext(), filter, page, limit)
	if err != nil {
		return err
	}
	return ok(c, result)
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetStatus handles PUT /api/users/:id/status
func (h *UserHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req userStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsActive == nil {
		return domain.NewValidationError("is_active", "is_active is required")
	}

	user, err := h.userService.SetStatus(c.UserContext(), actor.ID, c.Params("id"), *req.IsActive)
	if err != nil {
		return err
	}
	return ok(c, user)
}
