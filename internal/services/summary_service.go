package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"budgetledger/internal/database"
	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/ledger"
	"budgetledger/internal/logger"
	"budgetledger/internal/models"
)

// summaryService owns the monthly_summaries table. Every write path locks
// the summary row and derives the closing balance from the previous month
// and the five buckets; the balance itself is never adjusted by a delta.
type summaryService struct {
	db    *gorm.DB
	uow   *database.UnitOfWork
	scale int32
}

// NewSummaryService creates a new SummaryServicer.
func NewSummaryService(db *gorm.DB, uow *database.UnitOfWork, opts Options) SummaryServicer {
	opts = opts.withDefaults()
	return &summaryService{db: db, uow: uow, scale: opts.Normalizer.Scale}
}

type kindTotal struct {
	Kind  ledger.Kind
	Total decimal.Decimal
}

// Recompute rebuilds one month from the permanent transactions with a
// single grouped aggregation and upserts the result.
func (s *summaryService) Recompute(tx *gorm.DB, userID string, month time.Time) (*models.MonthlySummary, error) {
	month = ledger.MonthStart(month)

	var rows []kindTotal
	if err := tx.Model(&models.Transaction{}).
		Select("kind, SUM(amount) AS total").
		Where("user_id = ? AND date >= ? AND date < ?", userID, month, ledger.NextMonth(month)).
		Group("kind").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var totals ledger.Totals
	for _, r := range rows {
		totals.Add(ledger.BucketOf(r.Kind), r.Total)
	}
	totals = totals.Round(s.scale)

	prev, err := s.previousClosing(tx, userID, month)
	if err != nil {
		return nil, err
	}

	summary := &models.MonthlySummary{UserID: userID, Month: month}
	summary.SetTotals(totals)
	summary.ClosingBalance = totals.Closing(prev)

	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"income_total", "needs_total", "wants_total", "reserves_total",
			"investments_total", "closing_balance", "updated_at",
		}),
	}).Create(summary).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// The upsert may have kept an existing row id; read back the stored row.
	stored, err := s.lockSummary(tx, userID, month)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, errors.New("summary missing after upsert"))
	}

	if err := s.carryForward(tx, userID, month, stored.ClosingBalance); err != nil {
		return nil, err
	}
	return stored, nil
}

// ApplyDelta folds one amount change into a month. It must run after the
// transaction change itself has been written in the same unit of work: a
// missing summary is rebuilt from the stored transactions instead.
func (s *summaryService) ApplyDelta(
	tx *gorm.DB,
	userID string,
	month time.Time,
	kind ledger.Kind,
	oldAmount *decimal.Decimal,
	newAmount *decimal.Decimal,
) (*models.MonthlySummary, error) {
	month = ledger.MonthStart(month)

	summary, err := s.lockSummary(tx, userID, month)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return s.Recompute(tx, userID, month)
	}

	bucket := ledger.BucketOf(kind)
	if bucket == ledger.BucketNone {
		return summary, nil
	}

	delta := decimal.Zero
	if newAmount != nil {
		delta = delta.Add(*newAmount)
	}
	if oldAmount != nil {
		delta = delta.Sub(*oldAmount)
	}
	if delta.IsZero() {
		return summary, nil
	}

	totals := summary.Totals()
	totals.Add(bucket, delta)
	totals = totals.Round(s.scale)
	summary.SetTotals(totals)

	prev, err := s.previousClosing(tx, userID, month)
	if err != nil {
		return nil, err
	}
	summary.ClosingBalance = totals.Closing(prev)

	if err := tx.Save(summary).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.carryForward(tx, userID, month, summary.ClosingBalance); err != nil {
		return nil, err
	}
	return summary, nil
}

// EnsureSummary returns the month's summary, building it first if absent.
// Callers that issue two deltas against one month call this before
// writing, so the second delta cannot land on a summary already rebuilt
// from the new state.
func (s *summaryService) EnsureSummary(tx *gorm.DB, userID string, month time.Time) (*models.MonthlySummary, error) {
	month = ledger.MonthStart(month)
	summary, err := s.lockSummary(tx, userID, month)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		return summary, nil
	}
	return s.Recompute(tx, userID, month)
}

// GetMonthlySummary returns a stored summary without building one.
func (s *summaryService) GetMonthlySummary(userID string, month time.Time) (*models.MonthlySummary, error) {
	var summary models.MonthlySummary
	if err := s.db.Where("user_id = ? AND month = ?", userID, ledger.MonthStart(month)).
		First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSummaryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &summary, nil
}

// ListSummaries returns a user's summaries in month order. A zero year
// lists every stored month.
func (s *summaryService) ListSummaries(userID string, year int) ([]models.MonthlySummary, error) {
	query := s.db.Where("user_id = ?", userID)
	if year > 0 {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("month >= ? AND month < ?", start, start.AddDate(1, 0, 0))
	}

	summaries := []models.MonthlySummary{}
	if err := query.Order("month ASC").Find(&summaries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return summaries, nil
}

// RecomputeMonth repairs one month in its own unit of work.
func (s *summaryService) RecomputeMonth(ctx context.Context, userID string, month time.Time) (*models.MonthlySummary, error) {
	var result *models.MonthlySummary
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.Recompute(tx, userID, month)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("monthly summary recomputed",
		"user_id", userID,
		"month", ledger.FormatMonth(result.Month),
		"closing_balance", result.ClosingBalance.StringFixed(s.scale),
	)
	return result, nil
}

// lockSummary reads the month's row with a FOR UPDATE lock. A missing row
// is reported as nil without error.
func (s *summaryService) lockSummary(tx *gorm.DB, userID string, month time.Time) (*models.MonthlySummary, error) {
	var summary models.MonthlySummary
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND month = ?", userID, month).
		First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &summary, nil
}

// previousClosing is the closing balance of the calendar month before
// month, or zero when that month has no summary.
func (s *summaryService) previousClosing(tx *gorm.DB, userID string, month time.Time) (decimal.Decimal, error) {
	prev, err := s.lockSummary(tx, userID, ledger.PrevMonth(month))
	if err != nil {
		return decimal.Zero, err
	}
	if prev == nil {
		return decimal.Zero, nil
	}
	return prev.ClosingBalance, nil
}

// carryForward re-derives the closing balance of each following month
// while summaries exist for consecutive months, stopping at the first gap
// or at the first month whose balance is already right.
func (s *summaryService) carryForward(tx *gorm.DB, userID string, month time.Time, closing decimal.Decimal) error {
	for next := ledger.NextMonth(month); ; next = ledger.NextMonth(next) {
		summary, err := s.lockSummary(tx, userID, next)
		if err != nil {
			return err
		}
		if summary == nil {
			return nil
		}

		want := summary.Totals().Closing(closing)
		if summary.ClosingBalance.Equal(want) {
			return nil
		}
		if err := tx.Model(summary).Update("closing_balance", want).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		closing = want
	}
}
