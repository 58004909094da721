package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/middleware"
)

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func ok(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, data)
}

func created(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusCreated, data)
}

// parseBody decodes the JSON body into out
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return domain.WrapError(domain.KindValidation, "invalid request body", err)
	}
	return nil
}

// pageParams reads ?page=&limit=, leaving defaults to the service
func pageParams(c *fiber.Ctx) (int64, int64) {
	return int64(c.QueryInt("page", 1)), int64(c.QueryInt("limit", 0))
}

// currentUser returns the authenticated user; routes using it sit behind
// middleware.Authenticate.
func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}
