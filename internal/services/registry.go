package services

import (
	"gorm.io/gorm"

	"budgetledger/internal/database"
)

// Registry holds one instance of every service, wired to the same
// connection and unit of work.
type Registry struct {
	Audit        AuditServicer
	Users        UserServicer
	Categories   CategoryServicer
	Summaries    SummaryServicer
	Dedup        DuplicateDetector
	Transactions TransactionServicer
	Commits      CommitServicer
	Staging      StagingServicer
}

// NewRegistry builds the service graph.
func NewRegistry(db *gorm.DB, uow *database.UnitOfWork, opts Options) *Registry {
	r := &Registry{
		Audit:      NewAuditService(db),
		Users:      NewUserService(db),
		Categories: NewCategoryService(db),
		Summaries:  NewSummaryService(db, uow, opts),
		Dedup:      NewDuplicateDetector(opts),
	}
	r.Transactions = NewTransactionService(db, uow, r.Summaries, r.Categories, r.Audit, opts)
	r.Commits = NewCommitService(uow, r.Summaries, r.Categories, r.Audit, opts)
	r.Staging = NewStagingService(db, uow, r.Categories, r.Dedup, r.Commits, r.Audit, opts)
	return r
}
