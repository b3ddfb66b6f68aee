package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetledger/internal/importer"
	"budgetledger/internal/ledger"
	"budgetledger/internal/models"
	"budgetledger/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID string, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, kind ledger.Kind, description, icon, color string) (*models.Category, error)
	GetUserCategories(userID string, kind *ledger.Kind, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name, description, icon, color string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	// CheckCompatibility reports whether categoryID belongs to userID and
	// has the given kind. It returns nil, ErrCategoryNotFound or
	// ErrCategoryKindMismatch.
	CheckCompatibility(db *gorm.DB, userID, categoryID string, kind ledger.Kind) error
}

// SummaryServicer maintains the per-user, per-month rollup. The methods
// taking a *gorm.DB run inside the caller's unit of work.
type SummaryServicer interface {
	Recompute(tx *gorm.DB, userID string, month time.Time) (*models.MonthlySummary, error)
	ApplyDelta(tx *gorm.DB, userID string, month time.Time, kind ledger.Kind, oldAmount, newAmount *decimal.Decimal) (*models.MonthlySummary, error)
	EnsureSummary(tx *gorm.DB, userID string, month time.Time) (*models.MonthlySummary, error)
	GetMonthlySummary(userID string, month time.Time) (*models.MonthlySummary, error)
	ListSummaries(userID string, year int) ([]models.MonthlySummary, error)
	RecomputeMonth(ctx context.Context, userID string, month time.Time) (*models.MonthlySummary, error)
}

// DatedAmount is the dedup identity of a transaction before normalization.
type DatedAmount struct {
	Date   time.Time
	Amount decimal.Decimal
}

// DuplicateDetector finds candidates that already exist in the permanent
// ledger. The returned set holds ledger.Normalizer keys.
type DuplicateDetector interface {
	FindExisting(db *gorm.DB, userID string, candidates []DatedAmount) (map[string]struct{}, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Kind       *ledger.Kind
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
}

// TransactionInput carries the fields of a new permanent transaction.
type TransactionInput struct {
	CategoryID  *string
	Kind        ledger.Kind
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

// TransactionUpdate lists the fields to change; nil leaves a field as is.
type TransactionUpdate struct {
	CategoryID    *string
	ClearCategory bool
	Kind          *ledger.Kind
	Amount        *decimal.Decimal
	Description   *string
	Date          *time.Time
}

// TransactionServicer defines the contract for permanent ledger entries.
// Every mutation keeps the affected monthly summaries in step.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, upd TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// ImportOptions tunes a single import call.
type ImportOptions struct {
	// AutoCommit promotes every staged row not flagged duplicate right away.
	AutoCommit bool
	IPAddress  string
}

// ImportResult reports what an import did. Errors counts every rejected
// row; ErrorMessages holds at most the configured number of them.
type ImportResult struct {
	BatchID       string                      `json:"batch_id"`
	Format        importer.Format             `json:"format"`
	Layout        string                      `json:"layout,omitempty"`
	Total         int                         `json:"total"`
	Valid         int                         `json:"valid"`
	Staged        int                         `json:"staged"`
	Created       int                         `json:"created"`
	Duplicates    int                         `json:"duplicates"`
	Errors        int                         `json:"errors"`
	ErrorMessages []string                    `json:"error_messages"`
	Pending       []models.PendingTransaction `json:"pending"`
}

// PendingUpdate lists the staged fields to change; nil leaves a field as is.
type PendingUpdate struct {
	Description   *string
	Amount        *string
	Kind          *string
	Date          *string
	CategoryID    *string
	ClearCategory bool
}

// StagingServicer defines the contract for imported rows awaiting review.
type StagingServicer interface {
	Import(ctx context.Context, userID string, format importer.Format, data []byte, opts ImportOptions) (*ImportResult, error)
	ListPending(userID, batchID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error)
	GetPending(userID, pendingID string) (*models.PendingTransaction, error)
	UpdatePending(ctx context.Context, userID, pendingID string, upd PendingUpdate) (*models.PendingTransaction, error)
	RejectPending(ctx context.Context, userID, pendingID string) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// CommitResult is the outcome for one requested id.
type CommitResult struct {
	ID            string `json:"id"`
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Code          string `json:"code,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Err           error  `json:"-"`
}

// CommitReport aggregates a commit request.
type CommitReport struct {
	Requested int            `json:"requested"`
	Committed int            `json:"committed"`
	Failed    int            `json:"failed"`
	Results   []CommitResult `json:"results"`
}

// CommitServicer promotes staged rows into the permanent ledger.
type CommitServicer interface {
	Commit(ctx context.Context, userID string, ids []string) (*CommitReport, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	ListAuditLogs(userID, resourceType string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}
