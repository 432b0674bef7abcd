package models

import "time"

const (
	LinkStatusPending   = "pending"
	LinkStatusDelivered = "delivered"
)

// PaymentLink is an issued, short-lived transfer request. Commission fields are fixed at issuance;
// only Status and ViewCount change afterwards (plus re-pricing while still pending).
type PaymentLink struct {
	ID         uint   `gorm:"primarykey" json:"-"`
	LinkID     string `gorm:"size:36;uniqueIndex;not null" json:"link_id"`
	MerchantID uint   `gorm:"index;not null" json:"merchant_id"`

	RecipientName string `gorm:"not null" json:"recipient_name"`
	IBAN          string `gorm:"column:iban;not null" json:"iban"`
	EDRPOU        string `gorm:"column:edrpou;not null" json:"edrpou"`
	Purpose       string `gorm:"size:255" json:"purpose"`

	Amount                  float64 `gorm:"not null" json:"amount"`
	CommissionPercentAmount float64 `gorm:"not null;default:0" json:"commission_percent_amount"`
	CommissionFixedAmount   float64 `gorm:"not null;default:0" json:"commission_fixed_amount"`
	FinalAmount             float64 `gorm:"not null" json:"final_amount"`
	Payload                 string  `gorm:"type:text;not null" json:"payload"`

	Status    string    `gorm:"size:16;index;not null;default:'pending'" json:"status"`
	ViewCount int       `gorm:"not null;default:0" json:"view_count"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *PaymentLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
