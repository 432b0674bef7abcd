package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
	"paylink/internal/repositories"
	"paylink/internal/services/ledger"
	"paylink/internal/services/qr"
	"paylink/internal/testutil"
	"paylink/internal/validation"
)

const testIBAN = "UA053220010000026001234567890"

type fixture struct {
	svc       Service
	db        *gorm.DB
	links     repositories.PaymentLinkRepository
	events    *repositories.EventRepository
	merchants repositories.MerchantRepository
	clock     *testutil.Clock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	links := repositories.NewPaymentLinkRepository(db)
	events := repositories.NewEventRepository(db)
	svc := NewService(links, ledger.New(events, testutil.Logger()), nil, nil, testutil.Logger(), Config{
		LinkTTL:       24 * time.Hour,
		QRLinkBase:    "https://bank.gov.ua/qr/",
		PublicBaseURL: "https://pay.example.com/",
		QuotaLocation: time.UTC,
	}, clock.Now)
	return &fixture{
		svc:       svc,
		db:        db,
		links:     links,
		events:    events,
		merchants: repositories.NewMerchantRepository(db),
		clock:     clock,
	}
}

func (f *fixture) merchant(t *testing.T, mutate func(*models.Merchant)) *models.Merchant {
	t.Helper()
	m := &models.Merchant{
		Name:   "ACME",
		IBAN:   testIBAN,
		EDRPOU: "12345678",
		Status: models.MerchantStatusActive,
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, f.merchants.Create(context.Background(), m))
	return m
}

var apiMeta = Meta{Source: models.SourceAPI, ClientIP: "1.2.3.4", UserAgent: "test"}

func TestGenerate_Success(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.merchant(t, func(m *models.Merchant) {
		m.PercentRate, m.UsePercentCommission = 1.5, true
		m.FixedFee, m.UseFixedCommission = 5, true
	})

	issued, err := f.svc.Generate(ctx, m, validation.PaymentInput{Amount: 100, Purpose: " Invoice 1 "}, apiMeta)
	require.NoError(t, err)

	link := issued.Link
	assert.Equal(t, 100.0, link.Amount)
	assert.Equal(t, 1.5, link.CommissionPercentAmount)
	assert.Equal(t, 5.0, link.CommissionFixedAmount)
	assert.Equal(t, 106.5, link.FinalAmount)
	assert.Equal(t, models.LinkStatusPending, link.Status)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), link.ExpiresAt)
	assert.Equal(t, "https://pay.example.com/payment/"+link.LinkID, issued.PageURL)
	assert.Equal(t, "https://bank.gov.ua/qr/"+link.Payload, issued.QRLink)

	record, err := qr.DecodePayload(link.Payload)
	require.NoError(t, err)
	lines := strings.Split(record, "\n")
	assert.Equal(t, "UAH106.50", lines[7])
	assert.Equal(t, "Invoice 1", lines[11])

	stored, err := f.links.GetByLinkID(ctx, link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, link.Payload, stored.Payload)

	var ev models.GenerationEvent
	require.NoError(t, f.db.Where("link_id = ?", link.LinkID).First(&ev).Error)
	assert.True(t, ev.Success)
	assert.Equal(t, ledger.Fingerprint(m.ID, 100, "Invoice 1"), ev.DedupKey)
	assert.Equal(t, models.SourceAPI, ev.Source)
	assert.Contains(t, string(ev.Details), `"percent_rate":1.5`)
}

func TestGenerate_DailyQuota(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.merchant(t, func(m *models.Merchant) {
		m.DailyLimit, m.UseDailyLimit = 1, true
	})
	in := validation.PaymentInput{Amount: 10, Purpose: "x"}

	_, err := f.svc.Generate(ctx, m, in, apiMeta)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Generate(ctx, m, in, apiMeta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDailyLimitReached))

	f.clock.Set(time.Date(2024, 5, 2, 0, 0, 1, 0, time.UTC))
	_, err = f.svc.Generate(ctx, m, in, apiMeta)
	require.NoError(t, err)

	var failed []models.GenerationEvent
	require.NoError(t, f.db.Where("success = ?", false).Find(&failed).Error)
	require.Len(t, failed, 1)
	assert.Equal(t, "DAILY_LIMIT_REACHED", failed[0].ErrorCode)
}

func TestRejectRequest_RecordsFailedGeneration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.merchant(t, nil)

	f.svc.RejectRequest(ctx, m, apiMeta, apperrors.ErrValidation.WithMessage("Invalid request format"))

	var failed []models.GenerationEvent
	require.NoError(t, f.db.Where("success = ?", false).Find(&failed).Error)
	require.Len(t, failed, 1)
	assert.Equal(t, "VALIDATION_ERROR", failed[0].ErrorCode)
	assert.Equal(t, "Invalid request format", failed[0].ErrorMessage)
	require.NotNil(t, failed[0].MerchantID)
	assert.Equal(t, m.ID, *failed[0].MerchantID)
	assert.Equal(t, "1.2.3.4", failed[0].ClientIP)
	assert.Equal(t, ledger.RowKey(failed[0].ID), failed[0].DedupKey)

	var links int64
	require.NoError(t, f.db.Model(&models.PaymentLink{}).Count(&links).Error)
	assert.Zero(t, links)
}

func TestGenerate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Merchant)
		input  validation.PaymentInput
		want   *apperrors.DomainError
	}{
		{"zero amount", nil, validation.PaymentInput{Amount: 0}, apperrors.ErrValidation},
		{"purpose too long", nil, validation.PaymentInput{Amount: 1, Purpose: strings.Repeat("a", 256)}, apperrors.ErrValidation},
		{"disabled", func(m *models.Merchant) { m.Status = models.MerchantStatusDisabled }, validation.PaymentInput{Amount: 1}, apperrors.ErrCompanyDisabled},
		{"bad iban", func(m *models.Merchant) { m.IBAN = "UA053220010000026001234567891" }, validation.PaymentInput{Amount: 1}, apperrors.ErrIBANInvalid},
		{"bad edrpou", func(m *models.Merchant) { m.EDRPOU = "1234" }, validation.PaymentInput{Amount: 1}, apperrors.ErrEDRPOInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			m := f.merchant(t, tt.mutate)

			issued, err := f.svc.Generate(context.Background(), m, tt.input, apiMeta)
			require.Error(t, err)
			assert.Nil(t, issued)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var ev models.GenerationEvent
			require.NoError(t, f.db.First(&ev).Error)
			assert.False(t, ev.Success)
			assert.Equal(t, tt.want.Code, ev.ErrorCode)

			var count int64
			require.NoError(t, f.db.Model(&models.PaymentLink{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestResolve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.merchant(t, nil)
	issued, err := f.svc.Generate(ctx, m, validation.PaymentInput{Amount: 100, Purpose: "Invoice 1"}, apiMeta)
	require.NoError(t, err)

	res, err := f.svc.Resolve(ctx, issued.Link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", res.RecipientName)
	assert.Equal(t, 100.0, res.FinalAmount)
	assert.Equal(t, issued.QRLink, res.QRLink)

	_, err = f.svc.Resolve(ctx, issued.Link.LinkID)
	require.NoError(t, err)
	stored, err := f.links.GetByLinkID(ctx, issued.Link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ViewCount)

	_, err = f.svc.Resolve(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, apperrors.ErrPaymentNotFound))
	_, err = f.svc.Resolve(ctx, "6f1c1c2e-1111-4222-8333-444455556666")
	assert.True(t, errors.Is(err, apperrors.ErrPaymentNotFound))

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Resolve(ctx, issued.Link.LinkID)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentNotFound), "expired links look missing")
}

func TestRecordScan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.merchant(t, nil)
	issued, err := f.svc.Generate(ctx, m, validation.PaymentInput{Amount: 1}, apiMeta)
	require.NoError(t, err)
	linkID := issued.Link.LinkID

	require.NoError(t, f.svc.RecordScan(ctx, linkID, apiMeta))
	require.NoError(t, f.svc.RecordScan(ctx, linkID, apiMeta))

	var scans []models.ScanEvent
	require.NoError(t, f.db.Order("id").Find(&scans).Error)
	require.Len(t, scans, 2)
	assert.False(t, scans[0].IsDuplicate)
	assert.True(t, scans[1].IsDuplicate)
	assert.Equal(t, m.ID, scans[0].MerchantID)

	stored, err := f.links.GetByLinkID(ctx, linkID)
	require.NoError(t, err)
	assert.Equal(t, models.LinkStatusDelivered, stored.Status)

	err = f.svc.RecordScan(ctx, "6f1c1c2e-1111-4222-8333-444455556666", apiMeta)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentNotFound))
}

func TestRecordBankHandoff(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	issued, err := f.svc.Generate(ctx, f.merchant(t, nil), validation.PaymentInput{Amount: 1}, apiMeta)
	require.NoError(t, err)

	handoff := BankHandoff{Bank: "monobank", PackageName: "com.ftband.mono"}
	require.NoError(t, f.svc.RecordBankHandoff(ctx, issued.Link.LinkID, handoff, apiMeta))
	require.NoError(t, f.svc.RecordBankHandoff(ctx, issued.Link.LinkID, handoff, apiMeta))

	var count int64
	require.NoError(t, f.db.Model(&models.BankHandoffEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	f.clock.Advance(25 * time.Hour)
	err = f.svc.RecordBankHandoff(ctx, issued.Link.LinkID, handoff, apiMeta)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentNotFound))
}

func TestQRImage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	issued, err := f.svc.Generate(ctx, f.merchant(t, nil), validation.PaymentInput{Amount: 1}, apiMeta)
	require.NoError(t, err)

	png, err := f.svc.QRImage(ctx, issued.Link.LinkID, 128)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRepriceOutstandingLinks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.merchant(t, nil)

	pending, err := f.svc.Generate(ctx, m, validation.PaymentInput{Amount: 100, Purpose: "a"}, apiMeta)
	require.NoError(t, err)
	delivered, err := f.svc.Generate(ctx, m, validation.PaymentInput{Amount: 100, Purpose: "b"}, apiMeta)
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordScan(ctx, delivered.Link.LinkID, apiMeta))

	m.PercentRate, m.UsePercentCommission = 10, true
	n, err := f.svc.RepriceOutstandingLinks(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.links.GetByLinkID(ctx, pending.Link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.CommissionPercentAmount)
	assert.Equal(t, 110.0, got.FinalAmount)
	assert.NotEqual(t, pending.Link.Payload, got.Payload)
	record, err := qr.DecodePayload(got.Payload)
	require.NoError(t, err)
	assert.Contains(t, record, "UAH110\n")

	untouched, err := f.links.GetByLinkID(ctx, delivered.Link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, untouched.FinalAmount)

	f.clock.Advance(48 * time.Hour)
	m.PercentRate = 20
	n, err = f.svc.RepriceOutstandingLinks(ctx, m)
	require.NoError(t, err)
	assert.Zero(t, n, "expired links are not repriced")
}
