package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"paylink/internal/models"
)

const issuer = "paylink-admin"

var ErrJWTSecretMissing = errors.New("JWT_SECRET not configured")

// AdminTokens signs and verifies admin session tokens.
type AdminTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAdminTokens(secret string, ttl time.Duration) *AdminTokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AdminTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs claims for an admin. Permissions default from the role when empty.
func (t *AdminTokens) Generate(adminID uint, email, role string, permissions []string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrJWTSecretMissing
	}
	if len(permissions) == 0 {
		permissions = models.GetDefaultPermissions(role)
	}
	now := t.now()
	claims := models.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(adminID), 10),
		},
		AdminID:     adminID,
		Email:       email,
		Role:        role,
		Permissions: permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates signature, expiry and issuer.
func (t *AdminTokens) Parse(tokenStr string) (*models.AdminClaims, error) {
	if len(t.secret) == 0 {
		return nil, ErrJWTSecretMissing
	}
	token, err := jwt.ParseWithClaims(tokenStr, &models.AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.AdminClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
