package models

import (
	"time"
)

const (
	MerchantStatusActive   = "active"
	MerchantStatusDisabled = "disabled"
)

// Merchant is a company allowed to issue payment links. Rows are never hard-deleted.
type Merchant struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	IBAN         string `gorm:"column:iban;not null" json:"iban"`
	EDRPOU       string `gorm:"column:edrpou;not null" json:"edrpou"`

	PercentRate          float64 `gorm:"not null;default:0" json:"percent_rate"`
	FixedFee             float64 `gorm:"not null;default:0" json:"fixed_fee"`
	UsePercentCommission bool    `gorm:"not null;default:false" json:"use_percent_commission"`
	UseFixedCommission   bool    `gorm:"not null;default:false" json:"use_fixed_commission"`

	DailyLimit    int  `gorm:"not null;default:0" json:"daily_limit"`
	UseDailyLimit bool `gorm:"not null;default:false" json:"use_daily_limit"`

	Status     string     `gorm:"not null;default:'active'" json:"status"`
	AllowedIPs StringList `gorm:"type:text" json:"allowed_ips"`

	// Token state. Hash, prefix, preview and encrypted copy are always replaced together.
	TokenHash      string     `gorm:"column:token_hash" json:"-"`
	TokenPrefix    string     `gorm:"column:token_prefix;size:8;index" json:"-"`
	TokenPreview   string     `gorm:"column:token_preview" json:"token_preview,omitempty"`
	TokenEncrypted string     `gorm:"column:token_encrypted;type:text" json:"-"`
	TokenRotatedAt *time.Time `json:"token_rotated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// IPAllowed reports whether ip may use this merchant's token. An empty list allows everyone.
func (m *Merchant) IPAllowed(ip string) bool {
	if len(m.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range m.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}
