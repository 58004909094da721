package handler

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	tests := map[domain.ErrorKind]int{
		domain.KindValidation:         400,
		domain.KindQuantityOutOfRange: 400,
		domain.KindInvalidSignature:   400,
		domain.KindUnauthenticated:    401,
		domain.KindInsufficientFunds:  402,
		domain.KindForbidden:          403,
		domain.KindNotFound:           404,
		domain.KindConflict:           409,
		domain.KindAlreadyPaid:        409,
		domain.KindInvalidTransition:  409,
		domain.KindServiceUnavailable: 422,
		domain.KindInternal:           500,
		domain.KindGateway:            502,
		domain.ErrorKind("unknown"):   500,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusFor(kind), string(kind))
	}
}

func renderError(t *testing.T, development bool, err error) (int, map[string]any) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), development)})
	app.Get("/", func(c *fiber.Ctx) error { return err })

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, testErr)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandler_DomainError(t *testing.T) {
	status, body := renderError(t, false, domain.NewInsufficientFundsError(domain.MoneyFromMajor(750), domain.MoneyFromMajor(100)))

	assert.Equal(t, fiber.StatusPaymentRequired, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "insufficient_funds", body["code"])
	assert.Equal(t, "insufficient balance", body["error"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(750), details["required"])
	assert.Equal(t, float64(100), details["current"])
}

func TestErrorHandler_HidesInternalCauses(t *testing.T) {
	cause := errors.New("mongo: connection reset")

	status, body := renderError(t, false, cause)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", body["code"])
	assert.NotContains(t, body, "details")

	_, body = renderError(t, true, cause)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mongo: connection reset", details["cause"])

	status, body = renderError(t, false, domain.WrapError(domain.KindGateway, "failed to create payment link", cause))
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.NotContains(t, body, "details")
}

func TestErrorHandler_FiberError(t *testing.T) {
	status, body := renderError(t, false, fiber.ErrNotFound)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}
