package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
)

type PaymentLinkRepository interface {
	Create(ctx context.Context, link *models.PaymentLink) error
	GetByLinkID(ctx context.Context, linkID string) (*models.PaymentLink, error)
	CountCreatedBetween(ctx context.Context, merchantID uint, from, to time.Time) (int64, error)
	RecordView(ctx context.Context, linkID string) error
	MarkDelivered(ctx context.Context, linkID string) (bool, error)
	ListOutstanding(ctx context.Context, merchantID uint, now time.Time) ([]models.PaymentLink, error)
	UpdatePricing(ctx context.Context, link *models.PaymentLink) error
}

type paymentLinkRepository struct {
	db *gorm.DB
}

func NewPaymentLinkRepository(db *gorm.DB) PaymentLinkRepository {
	return &paymentLinkRepository{db: db}
}

func (r *paymentLinkRepository) Create(ctx context.Context, link *models.PaymentLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *paymentLinkRepository) GetByLinkID(ctx context.Context, linkID string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	if err := r.db.WithContext(ctx).Where("link_id = ?", linkID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return &link, nil
}

// CountCreatedBetween counts links issued in [from, to). The count is not locked, so
// concurrent issuance can exceed a daily limit by the number of requests in flight.
func (r *paymentLinkRepository) CountCreatedBetween(ctx context.Context, merchantID uint, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentLink{}).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

func (r *paymentLinkRepository) RecordView(ctx context.Context, linkID string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentLink{}).
		Where("link_id = ?", linkID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

// MarkDelivered moves a pending link to delivered. Reports whether this call made the change.
func (r *paymentLinkRepository) MarkDelivered(ctx context.Context, linkID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentLink{}).
		Where("link_id = ? AND status = ?", linkID, models.LinkStatusPending).
		Update("status", models.LinkStatusDelivered)
	return res.RowsAffected > 0, res.Error
}

// ListOutstanding returns pending links of a merchant that have not expired.
func (r *paymentLinkRepository) ListOutstanding(ctx context.Context, merchantID uint, now time.Time) ([]models.PaymentLink, error) {
	var links []models.PaymentLink
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND status = ? AND expires_at > ?", merchantID, models.LinkStatusPending, now.UTC()).
		Order("id").
		Find(&links).Error
	return links, err
}

// UpdatePricing rewrites commission, final amount and payload of a still-pending link.
func (r *paymentLinkRepository) UpdatePricing(ctx context.Context, link *models.PaymentLink) error {
	return r.db.WithContext(ctx).Model(&models.PaymentLink{}).
		Where("id = ? AND status = ?", link.ID, models.LinkStatusPending).
		Updates(map[string]interface{}{
			"commission_percent_amount": link.CommissionPercentAmount,
			"commission_fixed_amount":   link.CommissionFixedAmount,
			"final_amount":              link.FinalAmount,
			"payload":                   link.Payload,
		}).Error
}
