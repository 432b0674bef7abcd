package payment

import (
	"time"

	"paylink/internal/models"
)

// Issued is the result of a successful generation.
type Issued struct {
	Link    *models.PaymentLink
	PageURL string
	QRLink  string
}

// Resolved is the public view of a live link.
type Resolved struct {
	LinkID            string    `json:"linkId"`
	RecipientName     string    `json:"recipientName"`
	IBAN              string    `json:"iban"`
	EDRPOU            string    `json:"edrpou"`
	Purpose           string    `json:"purpose"`
	OriginalAmount    float64   `json:"originalAmount"`
	CommissionPercent float64   `json:"commissionPercent"`
	CommissionFixed   float64   `json:"commissionFixed"`
	FinalAmount       float64   `json:"finalAmount"`
	Status            string    `json:"status"`
	ExpiresAt         time.Time `json:"expiresAt"`
	Payload           string    `json:"payload"`
	QRLink            string    `json:"qrlink"`
}
