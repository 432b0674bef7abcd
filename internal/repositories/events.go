package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"paylink/internal/models"
)

// EventRepository stores the append-only ledger tables. It implements ledger.Store.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) CreateGeneration(ctx context.Context, ev *models.GenerationEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *EventRepository) SetGenerationDedupKey(ctx context.Context, id uint, key string) error {
	return r.db.WithContext(ctx).Model(&models.GenerationEvent{}).
		Where("id = ? AND (dedup_key = '' OR dedup_key IS NULL)", id).
		UpdateColumn("dedup_key", key).Error
}

type dedupCount struct {
	DedupKey string
	Count    int64
}

func (r *EventRepository) CountByDedupKeys(ctx context.Context, keys []string) (map[string]int64, error) {
	var rows []dedupCount
	err := r.db.WithContext(ctx).Model(&models.GenerationEvent{}).
		Select("dedup_key, COUNT(*) AS count").
		Where("dedup_key IN ?", keys).
		Group("dedup_key").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.DedupKey] = row.Count
	}
	return counts, nil
}

func (r *EventRepository) GenerationKeys(ctx context.Context, merchantID uint, from, to time.Time) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&models.GenerationEvent{}).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, from.UTC(), to.UTC()).
		Order("id").
		Pluck("dedup_key", &keys).Error
	return keys, err
}

func (r *EventRepository) ScanExists(ctx context.Context, linkID, clientIP string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Where("link_id = ? AND client_ip = ?", linkID, clientIP).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *EventRepository) CreateScan(ctx context.Context, ev *models.ScanEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *EventRepository) CreateBankHandoff(ctx context.Context, ev *models.BankHandoffEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}
