package models

import "github.com/golang-jwt/jwt/v5"

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// AdminClaims identify a human back-office session. Merchants never hold these.
type AdminClaims struct {
	jwt.RegisteredClaims
	AdminID     uint     `json:"admin_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *AdminClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
