package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SourceAPI   = "api"
	SourceAdmin = "admin"
)

// GenerationEvent is an append-only snapshot of one issuance attempt, successful or not.
// DedupKey is for analytics only and never gates issuance.
type GenerationEvent struct {
	ID           uint    `gorm:"primarykey" json:"id"`
	MerchantID   *uint   `gorm:"index" json:"merchant_id,omitempty"`
	MerchantName string  `json:"merchant_name"`
	LinkID       string  `gorm:"size:36;index" json:"link_id,omitempty"`
	TokenHash    string  `gorm:"size:64" json:"token_hash,omitempty"`
	DedupKey     string  `gorm:"size:80;index" json:"dedup_key"`
	Source       string  `gorm:"size:16" json:"source"`
	Success      bool    `json:"success"`
	ErrorCode    string  `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Amount       float64 `json:"amount"`
	FinalAmount  float64 `json:"final_amount"`
	Purpose      string  `gorm:"size:255" json:"purpose"`
	ClientIP     string  `gorm:"size:64" json:"client_ip"`
	// Details holds the commission/config snapshot taken at attempt time.
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// ScanEvent records one resolution of a payment page.
type ScanEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	LinkID      string    `gorm:"size:36;index:idx_scan_link_ip" json:"link_id"`
	MerchantID  uint      `gorm:"index" json:"merchant_id"`
	ClientIP    string    `gorm:"size:64;index:idx_scan_link_ip" json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	IsDuplicate bool      `json:"is_duplicate"`
	CreatedAt   time.Time `json:"created_at"`
}

// BankHandoffEvent records one "open bank app" action. No dedup semantics.
type BankHandoffEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	LinkID      string    `gorm:"size:36;index" json:"link_id"`
	MerchantID  uint      `gorm:"index" json:"merchant_id"`
	Bank        string    `gorm:"size:128" json:"bank"`
	PackageName string    `gorm:"size:255" json:"package_name"`
	ClientIP    string    `gorm:"size:64" json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
}
