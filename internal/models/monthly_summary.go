package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetledger/internal/ledger"
	"budgetledger/internal/uuid"
)

// MonthlySummary is the derived per-user, per-month rollup. It is never
// soft deleted: ClosingBalance must always equal the previous month's
// closing balance plus income minus the four outflow totals.
type MonthlySummary struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string          `gorm:"type:uuid;not null;uniqueIndex:idx_monthly_summaries_user_month,priority:1" json:"user_id"`
	Month            time.Time       `gorm:"type:date;not null;uniqueIndex:idx_monthly_summaries_user_month,priority:2" json:"month"`
	IncomeTotal      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"income_total"`
	NeedsTotal       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"needs_total"`
	WantsTotal       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"wants_total"`
	ReservesTotal    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reserves_total"`
	InvestmentsTotal decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"investments_total"`
	ClosingBalance   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"closing_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *MonthlySummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}

// Totals returns the five buckets.
func (s *MonthlySummary) Totals() ledger.Totals {
	return ledger.Totals{
		Income:      s.IncomeTotal,
		Needs:       s.NeedsTotal,
		Wants:       s.WantsTotal,
		Reserves:    s.ReservesTotal,
		Investments: s.InvestmentsTotal,
	}
}

// SetTotals overwrites the five buckets.
func (s *MonthlySummary) SetTotals(t ledger.Totals) {
	s.IncomeTotal = t.Income
	s.NeedsTotal = t.Needs
	s.WantsTotal = t.Wants
	s.ReservesTotal = t.Reserves
	s.InvestmentsTotal = t.Investments
}
