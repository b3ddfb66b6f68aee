package models

import (
	"time"

	"github.com/shopspring/decimal"

	"budgetledger/internal/ledger"
)

// TransactionSource records how a permanent transaction entered the ledger.
type TransactionSource string

const (
	TransactionSourceManual TransactionSource = "manual"
	TransactionSourceImport TransactionSource = "import"
)

// Transaction is a permanent ledger entry. Amount is non-negative; the kind
// decides whether it adds to or draws from the month's balance.
type Transaction struct {
	Base
	UserID      string            `gorm:"type:uuid;not null;index:idx_transactions_user_date,priority:1" json:"user_id"`
	CategoryID  *string           `gorm:"type:uuid" json:"category_id,omitempty"`
	Kind        ledger.Kind       `gorm:"type:varchar(20);not null" json:"kind"`
	Amount      decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	Description string            `gorm:"size:255;not null" json:"description"`
	Date        time.Time         `gorm:"type:date;not null;index:idx_transactions_user_date,priority:2" json:"date"`
	Source      TransactionSource `gorm:"type:varchar(20);not null" json:"source"`
}
