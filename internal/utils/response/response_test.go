package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paylink/internal/errors"
)

func run(t *testing.T, h fiber.Handler) (*http.Response, map[string]interface{}) {
	t.Helper()
	app := fiber.New()
	app.Get("/", h)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp, body
}

func TestFromError_DomainError(t *testing.T) {
	resp, body := run(t, func(c *fiber.Ctx) error {
		return FromError(c, apperrors.ErrIPNotAllowed)
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "IP_NOT_ALLOWED", body["code"])
	assert.Equal(t, apperrors.ErrIPNotAllowed.Message, body["error"])
}

func TestFromError_WrappedValidationKeepsMessage(t *testing.T) {
	resp, body := run(t, func(c *fiber.Ctx) error {
		return FromError(c, apperrors.ErrValidation.WithMessage("amount must be greater than zero"))
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "amount must be greater than zero", body["error"])
}

func TestFromError_UntypedIsGeneric500(t *testing.T) {
	resp, body := run(t, func(c *fiber.Ctx) error {
		return FromError(c, errors.New("pq: connection refused"))
	})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, apperrors.ErrInternal.Message, body["error"])
}

func TestFromError_ServerSideDetailIsHidden(t *testing.T) {
	resp, body := run(t, func(c *fiber.Ctx) error {
		return FromError(c, apperrors.ErrDecryptionFailed.WithMessage("no encrypted token stored for merchant"))
	})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "DECRYPTION_FAILED", body["code"])
	assert.Equal(t, apperrors.ErrInternal.Message, body["error"])
}

func TestTooManyRequests(t *testing.T) {
	resp, body := run(t, func(c *fiber.Ctx) error {
		return TooManyRequests(c, 1500*time.Millisecond)
	})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, float64(1500), body["retry_after_ms"])
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, "2", resp.Header.Get(fiber.HeaderRetryAfter))
}
