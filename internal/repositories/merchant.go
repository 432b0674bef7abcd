package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
)

// TokenState is the full set of stored token forms. They are always written together.
type TokenState struct {
	Hash      string
	Prefix    string
	Preview   string
	Encrypted string
}

type MerchantRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Merchant, error)
	List(ctx context.Context, limit, offset int) ([]models.Merchant, int64, error)
	Create(ctx context.Context, merchant *models.Merchant) error
	Update(ctx context.Context, merchant *models.Merchant) error
	FindByTokenPrefix(ctx context.Context, prefix string) ([]models.Merchant, error)
	ReplaceToken(ctx context.Context, id uint, state TokenState, rotatedAt time.Time) error
	BackfillToken(ctx context.Context, id uint, expectedHash string, state TokenState) error
}

type merchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) GetByID(ctx context.Context, id uint) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMerchantNotFound
		}
		return nil, err
	}
	return &merchant, nil
}

// List returns one page of merchants ordered by id and the total count.
func (r *merchantRepository) List(ctx context.Context, limit, offset int) ([]models.Merchant, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Merchant{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var merchants []models.Merchant
	err := r.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset).Find(&merchants).Error
	return merchants, total, err
}

func (r *merchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

// Update saves profile, commission and quota fields. Token columns are left alone.
func (r *merchantRepository) Update(ctx context.Context, merchant *models.Merchant) error {
	if merchant.ID == 0 {
		return errors.New("cannot update merchant with ID 0")
	}
	return r.db.WithContext(ctx).Model(&models.Merchant{}).
		Where("id = ?", merchant.ID).
		Select(
			"name", "contact_name", "contact_email", "contact_phone", "iban", "edrpou",
			"percent_rate", "fixed_fee", "use_percent_commission", "use_fixed_commission",
			"daily_limit", "use_daily_limit", "status", "allowed_ips", "updated_at",
		).
		Updates(merchant).Error
}

// FindByTokenPrefix returns every merchant that may own a token with this prefix,
// including legacy rows stored before prefixes were indexed.
func (r *merchantRepository) FindByTokenPrefix(ctx context.Context, prefix string) ([]models.Merchant, error) {
	var merchants []models.Merchant
	err := r.db.WithContext(ctx).
		Where("token_hash <> ''").
		Where("token_prefix = ? OR token_prefix = '' OR token_prefix IS NULL", prefix).
		Order("id").
		Find(&merchants).Error
	return merchants, err
}

// ReplaceToken swaps all token columns in one statement so no reader sees a mix.
func (r *merchantRepository) ReplaceToken(ctx context.Context, id uint, state TokenState, rotatedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Merchant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"token_hash":       state.Hash,
			"token_prefix":     state.Prefix,
			"token_preview":    state.Preview,
			"token_encrypted":  state.Encrypted,
			"token_rotated_at": rotatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrMerchantNotFound
	}
	return nil
}

// BackfillToken fills the derived columns of a legacy token. It is a no-op if the token
// was rotated since the caller read expectedHash. Empty fields in state are not written.
func (r *merchantRepository) BackfillToken(ctx context.Context, id uint, expectedHash string, state TokenState) error {
	updates := map[string]interface{}{}
	if state.Prefix != "" {
		updates["token_prefix"] = state.Prefix
	}
	if state.Preview != "" {
		updates["token_preview"] = state.Preview
	}
	if state.Encrypted != "" {
		updates["token_encrypted"] = state.Encrypted
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Merchant{}).
		Where("id = ? AND token_hash = ?", id, expectedHash).
		Updates(updates).Error
}
