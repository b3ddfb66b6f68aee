package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"budgetledger/internal/database"
	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/ledger"
	"budgetledger/internal/models"
	"budgetledger/internal/pagination"
)

// transactionService handles permanent ledger entries.
type transactionService struct {
	db         *gorm.DB
	uow        *database.UnitOfWork
	summaries  SummaryServicer
	categories CategoryServicer
	audit      AuditServicer
	normalizer ledger.Normalizer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(
	db *gorm.DB,
	uow *database.UnitOfWork,
	summaries SummaryServicer,
	categories CategoryServicer,
	audit AuditServicer,
	opts Options,
) TransactionServicer {
	opts = opts.withDefaults()
	return &transactionService{
		db:         db,
		uow:        uow,
		summaries:  summaries,
		categories: categories,
		audit:      audit,
		normalizer: opts.Normalizer,
	}
}

// validate normalizes the money fields of a transaction in place.
func (s *transactionService) validate(t *models.Transaction) error {
	if !t.Kind.Valid() {
		return apperrors.ErrInvalidKind
	}
	t.Description = ledger.SanitizeDescription(t.Description)
	if t.Description == "" {
		return apperrors.WithMessage(apperrors.ErrValidationFailed, "description is required")
	}
	amount, err := s.normalizer.ValidateAmount(t.Amount)
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrValidationFailed, err.Error())
	}
	t.Amount = amount
	date, err := s.normalizer.ValidateDate(t.Date)
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrValidationFailed, err.Error())
	}
	t.Date = date
	return nil
}

// CreateTransaction writes a manual transaction and folds it into its month.
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*models.Transaction, error) {
	txn := &models.Transaction{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        in.Date,
		Source:      models.TransactionSourceManual,
	}
	if err := s.validate(txn); err != nil {
		return nil, err
	}

	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		if txn.CategoryID != nil {
			if err := s.categories.CheckCompatibility(tx, userID, *txn.CategoryID, txn.Kind); err != nil {
				return err
			}
		}
		if err := tx.Create(txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		_, err := s.summaries.ApplyDelta(tx, userID, txn.Date, txn.Kind, nil, &txn.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(userID, "CREATE", "transaction", txn.ID, "", map[string]interface{}{
		"kind":   txn.Kind,
		"amount": s.normalizer.Format(txn.Amount),
		"date":   txn.Date.Format("2006-01-02"),
	})
	return txn, nil
}

// GetUserTransactions retrieves a paginated list of transactions for a user.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	query := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)

	if filter.FromDate != nil {
		query = query.Where("date >= ?", ledger.Day(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query = query.Where("date <= ?", ledger.Day(*filter.ToDate))
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}

	result, err := pagination.Fetch[models.Transaction](query, page, "date DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	return s.findTransaction(s.db, userID, transactionID)
}

func (s *transactionService) findTransaction(db *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := db.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &txn, nil
}

// UpdateTransaction edits a transaction. From the summaries' point of view
// this is a removal of the old values and an addition of the new ones:
// a move across months or a kind change is two deltas, an amount-only
// change is one.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, upd TransactionUpdate) (*models.Transaction, error) {
	var result *models.Transaction
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		current, err := s.findTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		old := *current
		next := *current

		if upd.Kind != nil {
			next.Kind = *upd.Kind
		}
		if upd.Amount != nil {
			next.Amount = *upd.Amount
		}
		if upd.Description != nil {
			next.Description = *upd.Description
		}
		if upd.Date != nil {
			next.Date = *upd.Date
		}
		switch {
		case upd.ClearCategory:
			next.CategoryID = nil
		case upd.CategoryID != nil:
			next.CategoryID = upd.CategoryID
		}
		if err := s.validate(&next); err != nil {
			return err
		}
		if next.CategoryID != nil && (upd.CategoryID != nil || next.Kind != old.Kind) {
			if err := s.categories.CheckCompatibility(tx, userID, *next.CategoryID, next.Kind); err != nil {
				return err
			}
		}

		oldMonth := ledger.MonthStart(old.Date)
		newMonth := ledger.MonthStart(next.Date)
		sameSlot := oldMonth.Equal(newMonth) && old.Kind == next.Kind

		// Build both summaries from the pre-update state first.
		if _, err := s.summaries.EnsureSummary(tx, userID, oldMonth); err != nil {
			return err
		}
		if !newMonth.Equal(oldMonth) {
			if _, err := s.summaries.EnsureSummary(tx, userID, newMonth); err != nil {
				return err
			}
		}

		if err := tx.Model(current).Updates(map[string]interface{}{
			"kind":        next.Kind,
			"amount":      next.Amount,
			"description": next.Description,
			"date":        next.Date,
			"category_id": next.CategoryID,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if sameSlot {
			if !old.Amount.Equal(next.Amount) {
				if _, err := s.summaries.ApplyDelta(tx, userID, newMonth, next.Kind, &old.Amount, &next.Amount); err != nil {
					return err
				}
			}
		} else {
			if _, err := s.summaries.ApplyDelta(tx, userID, oldMonth, old.Kind, &old.Amount, nil); err != nil {
				return err
			}
			if _, err := s.summaries.ApplyDelta(tx, userID, newMonth, next.Kind, nil, &next.Amount); err != nil {
				return err
			}
		}

		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(userID, "UPDATE", "transaction", transactionID, "", map[string]interface{}{
		"kind":   result.Kind,
		"amount": s.normalizer.Format(result.Amount),
		"date":   result.Date.Format("2006-01-02"),
	})
	return result, nil
}

// DeleteTransaction soft-deletes a transaction and removes its amount from
// its month.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	var deleted models.Transaction
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		txn, err := s.findTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		if err := tx.Delete(txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		amount := txn.Amount
		if _, err := s.summaries.ApplyDelta(tx, userID, txn.Date, txn.Kind, &amount, nil); err != nil {
			return err
		}
		deleted = *txn
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Log(userID, "DELETE", "transaction", transactionID, "", map[string]interface{}{
		"kind":   deleted.Kind,
		"amount": s.normalizer.Format(deleted.Amount),
	})
	return nil
}
