package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetledger/internal/ledger"
	"budgetledger/internal/uuid"
)

// PendingTransaction is an imported row awaiting review. It never counts
// toward any monthly summary and is hard deleted on commit or rejection.
type PendingTransaction struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	BatchID     string          `gorm:"type:uuid;not null;index" json:"batch_id"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Date        time.Time       `gorm:"type:date;not null" json:"date"`
	Kind        ledger.Kind     `gorm:"type:varchar(20);not null" json:"kind"`
	CategoryID  *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	ExpiresAt   time.Time       `gorm:"not null;index" json:"expires_at"`
	IsDuplicate bool            `gorm:"not null" json:"is_duplicate"`
	RawData     string          `gorm:"type:text" json:"raw_data"`
	SourceLine  int             `json:"source_line"`
	IsExpired   bool            `gorm:"-" json:"is_expired"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PendingTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the row can no longer be committed. A row whose
// expiry equals now is already expired.
func (p *PendingTransaction) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
