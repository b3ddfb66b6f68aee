package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"budgetledger/internal/database"
	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/logger"
	"budgetledger/internal/models"
)

// commitService promotes staged rows one at a time. Each row gets its own
// unit of work, so a failure leaves that row staged and its siblings
// unaffected.
type commitService struct {
	uow        *database.UnitOfWork
	summaries  SummaryServicer
	categories CategoryServicer
	audit      AuditServicer
	opts       Options
}

// NewCommitService creates a new CommitServicer.
func NewCommitService(
	uow *database.UnitOfWork,
	summaries SummaryServicer,
	categories CategoryServicer,
	audit AuditServicer,
	opts Options,
) CommitServicer {
	return &commitService{
		uow:        uow,
		summaries:  summaries,
		categories: categories,
		audit:      audit,
		opts:       opts.withDefaults(),
	}
}

// Commit processes ids in order. Only request-level problems are returned
// as an error; per-row failures are reported in the results.
func (s *commitService) Commit(ctx context.Context, userID string, ids []string) (*CommitReport, error) {
	if len(ids) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one id is required")
	}
	if len(ids) > s.opts.CommitMaxIDs {
		return nil, apperrors.ErrTooManyIDs
	}

	report := &CommitReport{Requested: len(ids), Results: make([]CommitResult, 0, len(ids))}
	for _, id := range ids {
		txn, err := s.commitOne(ctx, userID, id)
		result := CommitResult{ID: id}
		if err != nil {
			result.Err = err
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				result.Code = appErr.Code
				result.Reason = appErr.Message
			} else {
				result.Code = apperrors.ErrInternalServer.Code
				result.Reason = apperrors.ErrInternalServer.Message
			}
			report.Failed++
		} else {
			result.Success = true
			result.TransactionID = txn.ID
			report.Committed++
		}
		report.Results = append(report.Results, result)
	}

	logger.Get().Infow("staged rows committed",
		"user_id", userID,
		"requested", report.Requested,
		"committed", report.Committed,
		"failed", report.Failed,
	)
	return report, nil
}

// commitOne turns one staged row into a permanent transaction, folds it
// into its month and removes the staged row, all in one unit of work.
func (s *commitService) commitOne(ctx context.Context, userID, id string) (*models.Transaction, error) {
	var txn *models.Transaction
	var downgraded bool

	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		downgraded = false

		var pending models.PendingTransaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, userID).
			First(&pending).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrPendingNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if pending.Expired(s.opts.now()) {
			return apperrors.ErrPendingExpired
		}

		categoryID := pending.CategoryID
		if categoryID != nil {
			if err := s.categories.CheckCompatibility(tx, userID, *categoryID, pending.Kind); err != nil {
				if !errors.Is(err, apperrors.ErrCategoryNotFound) && !errors.Is(err, apperrors.ErrCategoryKindMismatch) {
					return err
				}
				categoryID = nil
				downgraded = true
			}
		}

		txn = &models.Transaction{
			UserID:      userID,
			CategoryID:  categoryID,
			Kind:        pending.Kind,
			Amount:      pending.Amount,
			Description: pending.Description,
			Date:        pending.Date,
			Source:      models.TransactionSourceImport,
		}
		if err := tx.Create(txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if _, err := s.summaries.ApplyDelta(tx, userID, txn.Date, txn.Kind, nil, &txn.Amount); err != nil {
			return err
		}

		res := tx.Delete(&pending)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected != 1 {
			return apperrors.ErrPendingNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if downgraded {
		logger.Get().Infow("category reference dropped at commit",
			"user_id", userID,
			"pending_id", id,
			"transaction_id", txn.ID,
		)
	}
	s.audit.Log(userID, "COMMIT", "pending_transaction", id, "", map[string]interface{}{
		"transaction_id":      txn.ID,
		"category_downgraded": downgraded,
	})
	return txn, nil
}
