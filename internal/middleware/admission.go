package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"

	"paylink/internal/metrics"
	"paylink/internal/services/admission"
	"paylink/internal/services/auth"
	"paylink/internal/utils/response"
)

// Admission guards the payment surface: the overload shedder runs first, then the
// per-identity rate limiter. Authentication comes after both.
func Admission(state *admission.State, m metrics.Collector) fiber.Handler {
	if m == nil {
		m = metrics.NoopCollector{}
	}
	return func(c *fiber.Ctx) error {
		started := time.Now()

		done, err := state.Shedder.Begin()
		if err != nil {
			m.RecordAdmission("overload", "rejected")
			return response.FromError(c, err)
		}
		defer func() {
			done()
			m.SetInFlight(state.Shedder.InFlight())
		}()
		m.SetInFlight(state.Shedder.InFlight())

		decision := state.Limiter.Allow(RateKey(c))
		if !decision.Allowed {
			m.RecordAdmission("rate_limit", "rejected")
			return response.TooManyRequests(c, decision.RetryAfter)
		}
		m.RecordAdmission("rate_limit", "allowed")

		err = c.Next()
		m.RecordRequestDuration(c.Route().Path, time.Since(started))
		return err
	}
}

// RateKey identifies the caller: a digest of the bearer token when one is sent, else the client IP.
func RateKey(c *fiber.Ctx) string {
	if token, err := auth.ParseBearer(c.Get(fiber.HeaderAuthorization)); err == nil {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:])
	}
	return "ip:" + c.IP()
}
