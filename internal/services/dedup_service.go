package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/ledger"
	"budgetledger/internal/models"
)

// dedupService answers "is this already in the ledger" for a whole batch
// with one range query.
type dedupService struct {
	normalizer ledger.Normalizer
}

// NewDuplicateDetector creates a new DuplicateDetector.
func NewDuplicateDetector(opts Options) DuplicateDetector {
	opts = opts.withDefaults()
	return &dedupService{normalizer: opts.Normalizer}
}

type datedAmountRow struct {
	Date   time.Time
	Amount decimal.Decimal
}

// FindExisting loads every permanent transaction of userID between the
// earliest and latest candidate day and returns the keys of candidates
// that match one of them.
func (s *dedupService) FindExisting(db *gorm.DB, userID string, candidates []DatedAmount) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(candidates) == 0 {
		return found, nil
	}

	minDay := ledger.Day(candidates[0].Date)
	maxDay := minDay
	for _, c := range candidates[1:] {
		day := ledger.Day(c.Date)
		if day.Before(minDay) {
			minDay = day
		}
		if day.After(maxDay) {
			maxDay = day
		}
	}

	var existing []datedAmountRow
	if err := db.Model(&models.Transaction{}).
		Select("date, amount").
		Where("user_id = ? AND date >= ? AND date <= ?", userID, minDay, maxDay).
		Scan(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stored := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		stored[s.normalizer.Key(e.Date, e.Amount)] = struct{}{}
	}
	for _, c := range candidates {
		key := s.normalizer.Key(c.Date, c.Amount)
		if _, ok := stored[key]; ok {
			found[key] = struct{}{}
		}
	}
	return found, nil
}
