package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"budgetledger/internal/database"
	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/importer"
	"budgetledger/internal/ledger"
	"budgetledger/internal/logger"
	"budgetledger/internal/models"
	"budgetledger/internal/pagination"
	"budgetledger/internal/uuid"
)

const stagingBatchSize = 200

// stagingService holds imported rows until they are committed or rejected.
// Staged rows never touch monthly summaries.
type stagingService struct {
	db         *gorm.DB
	uow        *database.UnitOfWork
	parser     *importer.Parser
	categories CategoryServicer
	dedup      DuplicateDetector
	commits    CommitServicer
	audit      AuditServicer
	opts       Options
}

// NewStagingService creates a new StagingServicer.
func NewStagingService(
	db *gorm.DB,
	uow *database.UnitOfWork,
	categories CategoryServicer,
	dedup DuplicateDetector,
	commits CommitServicer,
	audit AuditServicer,
	opts Options,
) StagingServicer {
	opts = opts.withDefaults()
	return &stagingService{
		db:         db,
		uow:        uow,
		parser:     importer.NewParser(opts.MaxRows, opts.MaxBytes),
		categories: categories,
		dedup:      dedup,
		commits:    commits,
		audit:      audit,
		opts:       opts,
	}
}

// compatKey memoizes category checks within one import.
type compatKey struct {
	categoryID string
	kind       ledger.Kind
}

// Import parses data, validates every row, flags rows already present in
// the ledger and stages the valid ones in a single unit of work. Nothing is
// staged when the file exceeds the ceilings.
func (s *stagingService) Import(ctx context.Context, userID string, format importer.Format, data []byte, opts ImportOptions) (*ImportResult, error) {
	rows, err := s.parser.Parse(format, data)
	if err != nil {
		return nil, importError(err)
	}

	result := &ImportResult{
		BatchID:       uuid.New(),
		Format:        format,
		Total:         len(rows),
		ErrorMessages: []string{},
		Pending:       []models.PendingTransaction{},
	}
	if len(rows) > 0 {
		result.Layout = rows[0].Layout
	}
	reject := func(msg string) {
		result.Errors++
		if len(result.ErrorMessages) < s.opts.MaxErrors {
			result.ErrorMessages = append(result.ErrorMessages, msg)
		}
	}

	candidates := make([]importer.Candidate, 0, len(rows))
	for _, row := range rows {
		c, err := importer.Validate(row, s.opts.Normalizer)
		if err != nil {
			reject(err.Error())
			continue
		}
		candidates = append(candidates, c)
	}

	now := s.opts.now()
	expiresAt := now.Add(s.opts.StagingTTL).UTC()

	var rejected []string
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		// Reset per attempt; the unit of work may retry.
		staged := make([]models.PendingTransaction, 0, len(candidates))
		rejected = rejected[:0]
		compat := make(map[compatKey]error)

		for _, c := range candidates {
			if c.CategoryID != nil {
				key := compatKey{categoryID: *c.CategoryID, kind: c.Kind}
				checkErr, seen := compat[key]
				if !seen {
					checkErr = s.categories.CheckCompatibility(tx, userID, *c.CategoryID, c.Kind)
					compat[key] = checkErr
				}
				if checkErr != nil {
					if !errors.Is(checkErr, apperrors.ErrCategoryNotFound) && !errors.Is(checkErr, apperrors.ErrCategoryKindMismatch) {
						return checkErr
					}
					rejected = append(rejected, fmt.Sprintf("row %d: %s", c.Line, checkErr.Error()))
					continue
				}
			}

			raw, err := json.Marshal(c.Raw)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			staged = append(staged, models.PendingTransaction{
				UserID:      userID,
				BatchID:     result.BatchID,
				Description: c.Description,
				Amount:      c.Amount,
				Date:        c.Date,
				Kind:        c.Kind,
				CategoryID:  c.CategoryID,
				ExpiresAt:   expiresAt,
				RawData:     string(raw),
				SourceLine:  c.Line,
			})
		}

		pairs := make([]DatedAmount, len(staged))
		for i, p := range staged {
			pairs[i] = DatedAmount{Date: p.Date, Amount: p.Amount}
		}
		existing, err := s.dedup.FindExisting(tx, userID, pairs)
		if err != nil {
			return err
		}
		for i := range staged {
			if _, dup := existing[s.opts.Normalizer.Key(staged[i].Date, staged[i].Amount)]; dup {
				staged[i].IsDuplicate = true
			}
		}

		if len(staged) > 0 {
			if err := tx.CreateInBatches(&staged, stagingBatchSize).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		result.Pending = staged
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, msg := range rejected {
		reject(msg)
	}

	result.Valid = len(result.Pending)
	result.Staged = len(result.Pending)
	for _, p := range result.Pending {
		if p.IsDuplicate {
			result.Duplicates++
		}
	}

	if opts.AutoCommit {
		if err := s.autoCommit(ctx, userID, result); err != nil {
			return nil, err
		}
	}

	logger.Get().Infow("import staged",
		"user_id", userID,
		"batch_id", result.BatchID,
		"format", format,
		"layout", result.Layout,
		"total", result.Total,
		"staged", result.Staged,
		"duplicates", result.Duplicates,
		"created", result.Created,
		"errors", result.Errors,
	)
	s.audit.Log(userID, "IMPORT", "import_batch", result.BatchID, opts.IPAddress, map[string]interface{}{
		"format":     format,
		"total":      result.Total,
		"staged":     result.Staged,
		"duplicates": result.Duplicates,
		"created":    result.Created,
		"errors":     result.Errors,
	})
	return result, nil
}

// autoCommit promotes the non-duplicate rows of a fresh batch and leaves
// the duplicates staged for review.
func (s *stagingService) autoCommit(ctx context.Context, userID string, result *ImportResult) error {
	ids := make([]string, 0, len(result.Pending))
	for _, p := range result.Pending {
		if !p.IsDuplicate {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	committed := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += s.opts.CommitMaxIDs {
		end := min(start+s.opts.CommitMaxIDs, len(ids))
		report, err := s.commits.Commit(ctx, userID, ids[start:end])
		if err != nil {
			return err
		}
		for _, r := range report.Results {
			if r.Success {
				committed[r.ID] = true
				continue
			}
			result.Errors++
			if len(result.ErrorMessages) < s.opts.MaxErrors {
				result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("commit %s: %s", r.ID, r.Reason))
			}
		}
	}

	remaining := result.Pending[:0]
	for _, p := range result.Pending {
		if !committed[p.ID] {
			remaining = append(remaining, p)
		}
	}
	result.Pending = remaining
	result.Created = len(committed)
	result.Staged = len(remaining)
	return nil
}

// importError maps parser failures onto the error taxonomy.
func importError(err error) error {
	var limitErr *importer.LimitError
	switch {
	case errors.As(err, &limitErr):
		return apperrors.WithMessage(apperrors.ErrImportTooLarge, limitErr.Error())
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return apperrors.ErrUnsupportedImportFormat
	case errors.Is(err, importer.ErrMalformed):
		return apperrors.WithMessage(apperrors.ErrInvalidImportFile, err.Error())
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// ListPending lists a user's staged rows, oldest first. Expired rows are
// included and marked.
func (s *stagingService) ListPending(userID, batchID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error) {
	query := s.db.Model(&models.PendingTransaction{}).Where("user_id = ?", userID)
	if batchID != "" {
		query = query.Where("batch_id = ?", batchID)
	}

	result, err := pagination.Fetch[models.PendingTransaction](query, page, "created_at ASC, id ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	now := s.opts.now()
	for i := range result.Data {
		result.Data[i].IsExpired = result.Data[i].Expired(now)
	}
	return result, nil
}

// GetPending retrieves one staged row for a user.
func (s *stagingService) GetPending(userID, pendingID string) (*models.PendingTransaction, error) {
	p, err := s.findPending(s.db, userID, pendingID)
	if err != nil {
		return nil, err
	}
	p.IsExpired = p.Expired(s.opts.now())
	return p, nil
}

func (s *stagingService) findPending(db *gorm.DB, userID, pendingID string) (*models.PendingTransaction, error) {
	var p models.PendingTransaction
	if err := db.Where("id = ? AND user_id = ?", pendingID, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPendingNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &p, nil
}

// UpdatePending edits a staged row with the same validation as import and
// re-evaluates its duplicate flag. Expired rows cannot be edited.
func (s *stagingService) UpdatePending(ctx context.Context, userID, pendingID string, upd PendingUpdate) (*models.PendingTransaction, error) {
	var result *models.PendingTransaction
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		p, err := s.findPending(tx, userID, pendingID)
		if err != nil {
			return err
		}
		if p.Expired(s.opts.now()) {
			return apperrors.ErrPendingExpired
		}

		row := importer.Row{
			Line:        p.SourceLine,
			Description: p.Description,
			Amount:      p.Amount.String(),
			Kind:        string(p.Kind),
			Date:        p.Date.Format("2006-01-02"),
		}
		if p.CategoryID != nil {
			row.CategoryID = *p.CategoryID
		}
		if upd.Description != nil {
			row.Description = *upd.Description
		}
		if upd.Amount != nil {
			row.Amount = *upd.Amount
		}
		if upd.Kind != nil {
			row.Kind = *upd.Kind
		}
		if upd.Date != nil {
			row.Date = *upd.Date
		}
		switch {
		case upd.ClearCategory:
			row.CategoryID = ""
		case upd.CategoryID != nil:
			row.CategoryID = *upd.CategoryID
		}

		c, err := importer.Validate(row, s.opts.Normalizer)
		if err != nil {
			var rowErr *importer.RowError
			if errors.As(err, &rowErr) {
				return apperrors.WithMessage(apperrors.ErrValidationFailed, rowErr.Message)
			}
			return apperrors.WithMessage(apperrors.ErrValidationFailed, err.Error())
		}
		if c.CategoryID != nil {
			if err := s.categories.CheckCompatibility(tx, userID, *c.CategoryID, c.Kind); err != nil {
				return err
			}
		}

		existing, err := s.dedup.FindExisting(tx, userID, []DatedAmount{{Date: c.Date, Amount: c.Amount}})
		if err != nil {
			return err
		}
		_, dup := existing[s.opts.Normalizer.Key(c.Date, c.Amount)]

		p.Description = c.Description
		p.Amount = c.Amount
		p.Kind = c.Kind
		p.Date = c.Date
		p.CategoryID = c.CategoryID
		p.IsDuplicate = dup
		if err := tx.Model(p).Updates(map[string]interface{}{
			"description":  p.Description,
			"amount":       p.Amount,
			"kind":         p.Kind,
			"date":         p.Date,
			"category_id":  p.CategoryID,
			"is_duplicate": p.IsDuplicate,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RejectPending deletes a staged row whether or not it has expired.
func (s *stagingService) RejectPending(ctx context.Context, userID, pendingID string) error {
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", pendingID, userID).Delete(&models.PendingTransaction{})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrPendingNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Log(userID, "REJECT", "pending_transaction", pendingID, "", nil)
	return nil
}

// PurgeExpired deletes every staged row, for all users, that has expired
// at before. It is only ever called by an operator.
func (s *stagingService) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", before.UTC()).Delete(&models.PendingTransaction{})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		purged = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Get().Infow("expired staged rows purged",
		"before", before.UTC().Format(time.RFC3339),
		"purged", purged,
	)
	return purged, nil
}
