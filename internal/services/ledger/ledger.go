// Package ledger appends issuance, scan and bank-handoff history and answers duplicate
// questions about it. Duplicate information is reported, never used to reject anything.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
)

// Store persists ledger rows. Rows are only ever inserted.
type Store interface {
	CreateGeneration(ctx context.Context, ev *models.GenerationEvent) error
	// SetGenerationDedupKey fills the row-id fallback key right after insert.
	SetGenerationDedupKey(ctx context.Context, id uint, key string) error
	CountByDedupKeys(ctx context.Context, keys []string) (map[string]int64, error)
	GenerationKeys(ctx context.Context, merchantID uint, from, to time.Time) ([]string, error)

	ScanExists(ctx context.Context, linkID, clientIP string) (bool, error)
	CreateScan(ctx context.Context, ev *models.ScanEvent) error
	CreateBankHandoff(ctx context.Context, ev *models.BankHandoffEvent) error
}

type Ledger struct {
	store Store
	log   *logrus.Logger
}

func New(store Store, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{store: store, log: log}
}

// RowKey is the fallback dedup key for events with neither token hash nor link id.
func RowKey(id uint) string {
	return "row:" + strconv.FormatUint(uint64(id), 10)
}

// DedupKey returns token hash, else link id, else the row key. Empty before the row has an id.
func DedupKey(ev *models.GenerationEvent) string {
	switch {
	case ev.TokenHash != "":
		return ev.TokenHash
	case ev.LinkID != "":
		return ev.LinkID
	case ev.ID != 0:
		return RowKey(ev.ID)
	}
	return ""
}

// ScanDedupKey is the link id of a scan.
func ScanDedupKey(ev *models.ScanEvent) string {
	return ev.LinkID
}

// Fingerprint identifies an issuance request by merchant, amount and purpose so repeated
// submissions of the same request share a dedup key.
func Fingerprint(merchantID uint, amount float64, purpose string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%.2f|%s", merchantID, amount, purpose)))
	return hex.EncodeToString(sum[:])
}

// Snapshot marshals details for GenerationEvent.Details. Nil in, nil out.
func Snapshot(details map[string]interface{}) datatypes.JSON {
	if len(details) == 0 {
		return nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// RecordGeneration appends one issuance attempt.
func (l *Ledger) RecordGeneration(ctx context.Context, ev *models.GenerationEvent) error {
	ev.DedupKey = DedupKey(ev)
	if err := l.store.CreateGeneration(ctx, ev); err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	if ev.DedupKey == "" {
		ev.DedupKey = RowKey(ev.ID)
		if err := l.store.SetGenerationDedupKey(ctx, ev.ID, ev.DedupKey); err != nil {
			return fmt.Errorf("record generation dedup key: %w", err)
		}
	}
	return nil
}

// RecordFailure mirrors a failed issuance into the ledger. Write errors are logged only,
// the caller already has its primary error to return.
func (l *Ledger) RecordFailure(ctx context.Context, ev *models.GenerationEvent, cause error) {
	ev.Success = false
	ev.ErrorCode = apperrors.CodeOf(cause)
	if de, ok := apperrors.As(cause); ok {
		ev.ErrorMessage = de.Message
	} else {
		ev.ErrorMessage = cause.Error()
	}
	if err := l.RecordGeneration(ctx, ev); err != nil {
		l.log.WithError(err).WithField("code", ev.ErrorCode).Error("failed to record failed generation")
	}
}

// RecordRejectedAuth records a post-authentication rejection (IP allow-list, disabled company).
func (l *Ledger) RecordRejectedAuth(ctx context.Context, m *models.Merchant, clientIP string, cause error) {
	ev := &models.GenerationEvent{
		MerchantName: m.Name,
		Source:       models.SourceAPI,
		ClientIP:     clientIP,
	}
	if m.ID != 0 {
		id := m.ID
		ev.MerchantID = &id
	}
	l.RecordFailure(ctx, ev, cause)
}

// RecordScan appends a scan, flagged as duplicate when the same link was already
// scanned from the same IP.
func (l *Ledger) RecordScan(ctx context.Context, ev *models.ScanEvent) error {
	exists, err := l.store.ScanExists(ctx, ev.LinkID, ev.ClientIP)
	if err != nil {
		return fmt.Errorf("lookup previous scan: %w", err)
	}
	ev.IsDuplicate = exists
	if err := l.store.CreateScan(ctx, ev); err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

func (l *Ledger) RecordBankHandoff(ctx context.Context, ev *models.BankHandoffEvent) error {
	if err := l.store.CreateBankHandoff(ctx, ev); err != nil {
		return fmt.Errorf("record bank handoff: %w", err)
	}
	return nil
}

// DuplicateCountsFor returns the number of generation rows per key, restricted to keys.
func (l *Ledger) DuplicateCountsFor(ctx context.Context, keys []string) (map[string]int64, error) {
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	return l.store.CountByDedupKeys(ctx, dedupe(keys))
}

// Stats summarizes a merchant's issuance attempts in [from, to).
type Stats struct {
	Total         int `json:"total"`
	Unique        int `json:"unique"`
	Duplicates    int `json:"duplicates"`
	DuplicateKeys int `json:"duplicate_keys"`
}

func (l *Ledger) GenerationStats(ctx context.Context, merchantID uint, from, to time.Time) (Stats, error) {
	keys, err := l.store.GenerationKeys(ctx, merchantID, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("load generation keys: %w", err)
	}
	unique := dedupe(keys)
	counts, err := l.DuplicateCountsFor(ctx, unique)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Total: len(keys), Unique: len(unique)}
	st.Duplicates = st.Total - st.Unique
	for _, k := range unique {
		if counts[k] > 1 {
			st.DuplicateKeys++
		}
	}
	return st, nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
