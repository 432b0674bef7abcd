package merchant

import (
	"paylink/internal/models"
)

// Config gates exposure of plaintext tokens.
type Config struct {
	// ExposeTokens returns freshly minted plaintext from register/rotate. Otherwise only the preview.
	ExposeTokens bool
	// RevealEnabled allows decrypting the stored copy on request.
	RevealEnabled bool
	// Production restricts reveal to the admin role.
	Production bool
}

// TokenResult carries a masked preview and, when exposure is allowed, the plaintext.
type TokenResult struct {
	Preview string `json:"preview"`
	Token   string `json:"token,omitempty"`
}

type Registered struct {
	Merchant *models.Merchant `json:"merchant"`
	Token    TokenResult      `json:"token"`
}

type Updated struct {
	Merchant *models.Merchant `json:"merchant"`
	Repriced int              `json:"repriced_links"`
}
