package utils

import (
	"errors"

	"paylink/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middleware.
const (
	LocalsClaims   = "claims"
	LocalsMerchant = "merchant"
)

// GetAdminClaims extracts the admin claims from the Fiber context.
// It returns an error if the claims are missing or of an invalid type.
func GetAdminClaims(c *fiber.Ctx) (*models.AdminClaims, error) {
	v := c.Locals(LocalsClaims)
	if v == nil {
		return nil, errors.New("claims not found in context")
	}

	claims, ok := v.(*models.AdminClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// GetMerchant returns the merchant resolved from the bearer token.
func GetMerchant(c *fiber.Ctx) (*models.Merchant, error) {
	m, ok := c.Locals(LocalsMerchant).(*models.Merchant)
	if !ok || m == nil {
		return nil, errors.New("merchant not found in context")
	}
	return m, nil
}
