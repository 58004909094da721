package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
)

// UserKey is the Locals key holding the authenticated *domain.User
const UserKey = "user"

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*domain.User, error)
}

// Authenticate validates the bearer token and loads the user into the context
func Authenticate(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Extract token (format: "Bearer <token>")
		authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authHeader == "" {
			return domain.NewError(domain.KindUnauthenticated, "missing authorization token")
		}
		tokenString := authHeader
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			tokenString = strings.TrimSpace(authHeader[7:])
		}

		user, err := auth.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			return err
		}

		c.Locals(UserKey, user)
		return c.Next()
	}
}

// RequireRole checks the authenticated user has one of the allowed roles
func RequireRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return domain.ErrUnauthenticated
		}
		if !user.HasRole(allowedRoles...) {
			return domain.NewError(domain.KindForbidden, "insufficient permissions").With("required_roles", allowedRoles)
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by Authenticate, or nil
func CurrentUser(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(UserKey).(*domain.User)
	return user
}
