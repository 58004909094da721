package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Register(c.UserContext(), req, sessionInfo(c))
	if err != nil {
		return err
	}
	return created(c, resp)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(c.UserContext(), req, sessionInfo(c))
	if err != nil {
		return err
	}
	return ok(c, resp)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// Refresh handles POST /api/auth/refresh
// Exchanges a refresh token for a new access/refresh token pair
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tokens, err := h.authService.Refresh(c.UserContext(), req.RefreshToken, sessionInfo(c))
	if err != nil {
		return err
	}
	return ok(c, tokens)
}

// Logout handles POST /api/auth/logout
// Revokes the refresh token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	// Body is optional; a client without a refresh token is simply done
	_ = c.BodyParser(&req)

	if err := h.authService.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return ok(c, fiber.Map{"message": "logged out"})
}

func sessionInfo(c *fiber.Ctx) service.SessionInfo {
	return service.SessionInfo{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IPAddress: c.IP(),
	}
}
