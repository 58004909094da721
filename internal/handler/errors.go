package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.uber.org/zap"
)

var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation:         fiber.StatusBadRequest,
	domain.KindUnauthenticated:    fiber.StatusUnauthorized,
	domain.KindForbidden:          fiber.StatusForbidden,
	domain.KindNotFound:           fiber.StatusNotFound,
	domain.KindConflict:           fiber.StatusConflict,
	domain.KindInsufficientFunds:  fiber.StatusPaymentRequired,
	domain.KindQuantityOutOfRange: fiber.StatusBadRequest,
	domain.KindServiceUnavailable: fiber.StatusUnprocessableEntity,
	domain.KindAlreadyPaid:        fiber.StatusConflict,
	domain.KindInvalidTransition:  fiber.StatusConflict,
	domain.KindGateway:            fiber.StatusBadGateway,
	domain.KindInvalidSignature:   fiber.StatusBadRequest,
	domain.KindInternal:           fiber.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind domain.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every error returned by handlers and middleware as
// the standard failure envelope. Internal errors are logged and, outside
// development, reported without their cause.
func ErrorHandler(logger *zap.Logger, development bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"error":   fe.Message,
				"code":    kindForStatus(fe.Code),
			})
		}

		var de *domain.Error
		if !errors.As(err, &de) {
			logger.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			body := fiber.Map{
				"success": false,
				"error":   "internal server error",
				"code":    domain.KindInternal,
			}
			if development {
				body["details"] = fiber.Map{"cause": err.Error()}
			}
			return c.Status(fiber.StatusInternalServerError).JSON(body)
		}

		status := StatusFor(de.Kind)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("kind", string(de.Kind)),
				zap.Error(err),
			)
		}

		body := fiber.Map{
			"success": false,
			"error":   de.Message,
			"code":    de.Kind,
		}
		details := fiber.Map{}
		for k, v := range de.Details {
			details[k] = v
		}
		if development && de.Err != nil {
			details["cause"] = de.Err.Error()
		}
		if len(details) > 0 {
			body["details"] = details
		}
		return c.Status(status).JSON(body)
	}
}

func kindForStatus(status int) domain.ErrorKind {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
		return domain.KindValidation
	case fiber.StatusUnauthorized:
		return domain.KindUnauthenticated
	case fiber.StatusForbidden:
		return domain.KindForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return domain.KindNotFound
	case fiber.StatusConflict:
		return domain.KindConflict
	}
	return domain.KindInternal
}
