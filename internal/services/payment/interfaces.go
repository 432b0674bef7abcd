package payment

import (
	"context"
	"time"

	"paylink/internal/models"
	"paylink/internal/validation"
)

// Service issues, resolves and observes payment links.
type Service interface {
	Generate(ctx context.Context, merchant *models.Merchant, in validation.PaymentInput, meta Meta) (*Issued, error)
	// RejectRequest mirrors an authenticated issuance attempt that failed before Generate, such as a malformed body.
	RejectRequest(ctx context.Context, merchant *models.Merchant, meta Meta, cause error)
	Resolve(ctx context.Context, linkID string) (*Resolved, error)
	QRImage(ctx context.Context, linkID string, size int) ([]byte, error)
	RecordScan(ctx context.Context, linkID string, meta Meta) error
	RecordBankHandoff(ctx context.Context, linkID string, handoff BankHandoff, meta Meta) error
	RepriceOutstandingLinks(ctx context.Context, merchant *models.Merchant) (int, error)
}

// Ledger is the subset of the audit ledger used here.
type Ledger interface {
	RecordGeneration(ctx context.Context, ev *models.GenerationEvent) error
	RecordFailure(ctx context.Context, ev *models.GenerationEvent, cause error)
	RecordScan(ctx context.Context, ev *models.ScanEvent) error
	RecordBankHandoff(ctx context.Context, ev *models.BankHandoffEvent) error
}

// Config is the link policy of a deployment.
type Config struct {
	LinkTTL       time.Duration
	QRLinkBase    string
	PublicBaseURL string
	QuotaLocation *time.Location
}

// Meta describes the caller of an operation.
type Meta struct {
	Source    string
	ClientIP  string
	UserAgent string
}

type BankHandoff struct {
	Bank        string `json:"bank"`
	PackageName string `json:"package_name"`
}
