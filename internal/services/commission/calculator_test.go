package commission

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{1.004, 1},
		{2.675, 2.68},
		{0.125, 0.13},
		{100, 100},
		{-1.005, -1.01},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		name     string
		merchant models.Merchant
		amount   float64
		want     Result
	}{
		{
			name:     "no commission",
			merchant: models.Merchant{PercentRate: 5, FixedFee: 3},
			amount:   100,
			want:     Result{FinalAmount: 100},
		},
		{
			name:     "percent only",
			merchant: models.Merchant{PercentRate: 1.5, UsePercentCommission: true, FixedFee: 3},
			amount:   100,
			want:     Result{PercentAmount: 1.5, FinalAmount: 101.5},
		},
		{
			name:     "fixed only",
			merchant: models.Merchant{PercentRate: 1.5, FixedFee: 2.345, UseFixedCommission: true},
			amount:   10,
			want:     Result{FixedAmount: 2.35, FinalAmount: 12.35},
		},
		{
			name: "both components rounded independently",
			merchant: models.Merchant{
				PercentRate: 2.5, UsePercentCommission: true,
				FixedFee: 0.005, UseFixedCommission: true,
			},
			// 0.21 * 2.5% = 0.00525 -> 0.01, fixed 0.005 -> 0.01
			amount: 0.21,
			want:   Result{PercentAmount: 0.01, FixedAmount: 0.01, FinalAmount: 0.23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCommission(&tt.merchant, tt.amount)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateCommission_FinalIsSumOfRoundedParts(t *testing.T) {
	m := models.Merchant{UsePercentCommission: true, UseFixedCommission: true}
	for _, rate := range []float64{0, 0.3, 1, 1.75, 2.9, 10} {
		for _, fee := range []float64{0, 0.3, 1.115, 5} {
			for _, amount := range []float64{0.01, 1, 9.99, 123.45, 1000} {
				m.PercentRate, m.FixedFee = rate, fee
				r := CalculateCommission(&m, amount)
				assert.InDelta(t, Round2(amount)+r.PercentAmount+r.FixedAmount, r.FinalAmount, 1e-9,
					"rate=%v fee=%v amount=%v", rate, fee, amount)
				assert.Equal(t, Round2(r.PercentAmount), r.PercentAmount)
				assert.Equal(t, Round2(r.FixedAmount), r.FixedAmount)
			}
		}
	}
}

func TestCheckDailyQuota(t *testing.T) {
	m := &models.Merchant{DailyLimit: 1, UseDailyLimit: true}
	require.NoError(t, CheckDailyQuota(m, 0))

	err := CheckDailyQuota(m, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDailyLimitReached))

	m.UseDailyLimit = false
	assert.NoError(t, CheckDailyQuota(m, 10))

	m.UseDailyLimit = true
	m.DailyLimit = 0
	assert.NoError(t, CheckDailyQuota(m, 10))
}

func TestDayWindow(t *testing.T) {
	kyiv := time.FixedZone("EET", 2*60*60)
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC) // 01:30 on the 11th in kyiv

	start, end := DayWindow(now, kyiv)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, kyiv), start)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, kyiv), end)

	start, end = DayWindow(now, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
