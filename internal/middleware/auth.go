// Package middleware provides the fiber middleware in front of the admin and payment surfaces.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
	"paylink/internal/services/auth"
	"paylink/internal/utils"
	"paylink/internal/utils/response"
)

// AuthMiddleware validates admin session JWTs and stores the claims in the request context.
type AuthMiddleware struct {
	tokens *auth.AdminTokens
	log    *logrus.Logger
}

func NewAuthMiddleware(tokens *auth.AdminTokens, log *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, log: log}
}

// Handler checks for a Bearer JWT with a valid signature, issuer and expiry.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	tokenString, err := auth.ParseBearer(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return response.FromError(c, err)
	}

	claims, err := m.tokens.Parse(tokenString)
	if err != nil {
		m.log.WithError(err).WithField("client_ip", c.IP()).Debug("admin token rejected")
		return response.FromError(c, apperrors.ErrInvalidToken)
	}

	c.Locals(utils.LocalsClaims, claims)
	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
// The admin role holds every permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetAdminClaims(c)
		if err != nil {
			return response.FromError(c, apperrors.ErrInvalidToken)
		}
		if claims.Role == models.RoleAdmin || claims.HasPermission(permission) {
			return c.Next()
		}
		return response.FromError(c, apperrors.ErrForbidden)
	}
}

// MerchantAuth resolves the merchant behind a payment bearer token.
type MerchantAuth struct {
	authenticator *auth.Authenticator
}

func NewMerchantAuth(a *auth.Authenticator) *MerchantAuth {
	return &MerchantAuth{authenticator: a}
}

func (m *MerchantAuth) Handler(c *fiber.Ctx) error {
	merchant, err := m.authenticator.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization), c.IP())
	if err != nil {
		return response.FromError(c, err)
	}
	c.Locals(utils.LocalsMerchant, merchant)
	return c.Next()
}
