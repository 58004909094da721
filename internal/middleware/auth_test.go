package middleware_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/handler"
	"github.com/mansoorceksport/smmpanel/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuthenticator map[string]*domain.User

func (s stubAuthenticator) Authenticate(ctx context.Context, bearer string) (*domain.User, error) {
	if bearer == "expired" {
		return nil, domain.ErrTokenExpired
	}
	user, ok := s[bearer]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return user, nil
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(zap.NewNop(), false)})
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	auth := stubAuthenticator{
		"user-token":  {ID: "u1", Role: domain.RoleUser, IsActive: true},
		"admin-token": {ID: "a1", Role: domain.RoleAdmin, IsActive: true},
	}

	app := newTestApp()
	app.Get("/me", middleware.Authenticate(auth), func(c *fiber.Ctx) error {
		return c.SendString(middleware.CurrentUser(c).ID)
	})
	app.Get("/admin", middleware.Authenticate(auth), middleware.RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing token", "/me", "", fiber.StatusUnauthorized, "unauthenticated"},
		{"bad token", "/me", "Bearer nope", fiber.StatusUnauthorized, "unauthenticated"},
		{"expired token", "/me", "Bearer expired", fiber.StatusUnauthorized, "unauthenticated"},
		{"valid token", "/me", "Bearer user-token", fiber.StatusOK, ""},
		{"lowercase scheme", "/me", "bearer user-token", fiber.StatusOK, ""},
		{"user on admin route", "/admin", "Bearer user-token", fiber.StatusForbidden, "forbidden"},
		{"admin on admin route", "/admin", "Bearer admin-token", fiber.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				body := decode(t, resp.Body)
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.wantCode, body["code"])
			}
		})
	}
}

func TestExpiredTokenMessage(t *testing.T) {
	app := newTestApp()
	app.Get("/me", middleware.Authenticate(stubAuthenticator{}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer expired")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := decode(t, resp.Body)
	assert.Equal(t, "token expired", body["error"])
}
