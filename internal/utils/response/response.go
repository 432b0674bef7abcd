// Package response writes JSON bodies and maps domain errors to HTTP statuses.
package response

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "paylink/internal/errors"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Created(c *fiber.Ctx, body interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(body)
}

func OK(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// FromError writes err as {"error", "code"} with the status its domain error carries.
// Untyped errors become a generic 500 so internals never leak.
func FromError(c *fiber.Ctx, err error) error {
	de, ok := apperrors.As(err)
	if !ok {
		de = apperrors.ErrInternal
	}
	if de.Status >= fiber.StatusInternalServerError {
		de = de.WithMessage(apperrors.ErrInternal.Message)
	}
	return c.Status(de.Status).JSON(fiber.Map{
		"error": de.Message,
		"code":  de.Code,
	})
}

// TooManyRequests answers a rate-limited request with the time left in its window.
func TooManyRequests(c *fiber.Ctx, retryAfter time.Duration) error {
	ms := retryAfter.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	secs := (ms + 999) / 1000
	c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(secs, 10))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":          apperrors.ErrRateLimited.Message,
		"code":           apperrors.ErrRateLimited.Code,
		"retry_after_ms": ms,
	})
}
