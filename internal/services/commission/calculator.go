// Package commission prices payment links and enforces the per-merchant daily issuance quota.
package commission

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Result holds the independently rounded commission components.
type Result struct {
	PercentAmount float64 `json:"percent_amount"`
	FixedAmount   float64 `json:"fixed_amount"`
	FinalAmount   float64 `json:"final_amount"`
}

// Round2 rounds half away from zero to two decimals. Values are parsed from their shortest
// decimal representation so 1.005 rounds to 1.01.
func Round2(v float64) float64 {
	f, _ := round2(decimal.NewFromFloat(v)).Float64()
	return f
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateCommission rounds each component on its own before summing.
// The order matters for reconciliation and must not be collapsed into one rounding.
func CalculateCommission(m *models.Merchant, amount float64) Result {
	amt := decimal.NewFromFloat(amount)

	percent := decimal.Zero
	if m.UsePercentCommission {
		percent = round2(amt.Mul(decimal.NewFromFloat(m.PercentRate)).Div(hundred))
	}
	fixed := decimal.Zero
	if m.UseFixedCommission {
		fixed = round2(decimal.NewFromFloat(m.FixedFee))
	}
	final := round2(amt.Add(percent).Add(fixed))

	p, _ := percent.Float64()
	f, _ := fixed.Float64()
	total, _ := final.Float64()
	return Result{PercentAmount: p, FixedAmount: f, FinalAmount: total}
}

// QuotaEnforced reports whether the merchant has an active daily limit.
func QuotaEnforced(m *models.Merchant) bool {
	return m.UseDailyLimit && m.DailyLimit > 0
}

// CheckDailyQuota rejects issuance once countToday reaches the limit.
func CheckDailyQuota(m *models.Merchant, countToday int64) error {
	if !QuotaEnforced(m) {
		return nil
	}
	if countToday >= int64(m.DailyLimit) {
		return apperrors.ErrDailyLimitReached
	}
	return nil
}

// DayWindow returns [startOfDay, startOfNextDay) for now in loc.
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
