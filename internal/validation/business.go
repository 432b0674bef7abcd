package validation

import (
	"fmt"
	"math"
	"net"

	"github.com/shopspring/decimal"
)

// PaymentInput is the issuance request body.
type PaymentInput struct {
	Amount  float64 `json:"amount"`
	Purpose string  `json:"purpose"`
}

// MerchantInput is the admin create/update body. Pointer fields are optional on update.
type MerchantInput struct {
	Name                 *string  `json:"name"`
	ContactName          *string  `json:"contact_name"`
	ContactEmail         *string  `json:"contact_email"`
	ContactPhone         *string  `json:"contact_phone"`
	IBAN                 *string  `json:"iban"`
	EDRPOU               *string  `json:"edrpou"`
	PercentRate          *float64 `json:"percent_rate"`
	FixedFee             *float64 `json:"fixed_fee"`
	UsePercentCommission *bool    `json:"use_percent_commission"`
	UseFixedCommission   *bool    `json:"use_fixed_commission"`
	DailyLimit           *int     `json:"daily_limit"`
	UseDailyLimit        *bool    `json:"use_daily_limit"`
	Status               *string  `json:"status"`
	AllowedIPs           []string `json:"allowed_ips"`
}

// Payment validates an issuance request
func (v *Validator) Payment(in *PaymentInput) {
	finite := !math.IsNaN(in.Amount) && !math.IsInf(in.Amount, 0)
	v.Check(finite, "amount", "must be a finite number")
	if finite {
		v.Check(in.Amount > 0, "amount", "must be greater than zero")
		v.Check(in.Amount >= MinPaymentAmount, "amount", fmt.Sprintf("must be at least %.2f", MinPaymentAmount))
		v.Check(decimal.NewFromFloat(in.Amount).Exponent() >= -2, "amount", "must not have more than 2 decimal places")
		v.Check(in.Amount <= MaxPaymentAmount, "amount", "is too large")
	}
	v.MaxLength("purpose", in.Purpose, MaxPurposeLength)
}

// Merchant validates a merchant body. Bank identifiers are checked separately so
// callers can report IBAN_INVALID and EDRPO_INVALID distinctly.
func (v *Validator) Merchant(in *MerchantInput, creating bool) {
	if creating {
		if in.Name == nil {
			v.AddError("name", "must not be empty")
		}
		if in.IBAN == nil {
			v.AddError("iban", "must not be empty")
		}
		if in.EDRPOU == nil {
			v.AddError("edrpou", "must not be empty")
		}
	}
	if in.Name != nil {
		v.Required("name", *in.Name)
		v.MaxLength("name", *in.Name, MaxNameLength)
	}
	if in.ContactEmail != nil && *in.ContactEmail != "" {
		v.Email("contact_email", *in.ContactEmail)
	}
	if in.PercentRate != nil {
		v.Range("percent_rate", *in.PercentRate, 0, MaxPercentRate)
	}
	if in.FixedFee != nil {
		v.Check(*in.FixedFee >= 0, "fixed_fee", "must not be negative")
	}
	if in.DailyLimit != nil {
		v.Check(*in.DailyLimit >= 0, "daily_limit", "must not be negative")
	}
	if in.Status != nil {
		v.Check(*in.Status == "active" || *in.Status == "disabled", "status", "must be active or disabled")
	}
	for _, ip := range in.AllowedIPs {
		if net.ParseIP(ip) == nil {
			v.AddError("allowed_ips", "must contain only IP addresses")
			break
		}
	}
}
