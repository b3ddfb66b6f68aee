package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetledger/internal/database"
	"budgetledger/internal/ledger"
	"budgetledger/internal/models"
	"budgetledger/internal/testutil"
)

// ledgerEnv wires the ledger services against one in-memory database with
// a controllable clock.
type ledgerEnv struct {
	db           *gorm.DB
	uow          *database.UnitOfWork
	now          time.Time
	opts         Options
	audit        AuditServicer
	categories   CategoryServicer
	summaries    SummaryServicer
	dedup        DuplicateDetector
	transactions TransactionServicer
	commits      CommitServicer
	staging      StagingServicer
}

func newLedgerEnv(t *testing.T, tune ...func(*Options)) *ledgerEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	env := &ledgerEnv{
		db:  db,
		uow: database.NewUnitOfWork(db, sql.LevelSerializable),
		now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	opts := DefaultOptions()
	opts.MaxRows = 100
	opts.MaxBytes = 1 << 20
	opts.Normalizer.Now = func() time.Time { return env.now }
	for _, f := range tune {
		f(&opts)
	}
	env.opts = opts

	env.audit = NewAuditService(db)
	env.categories = NewCategoryService(db)
	env.summaries = NewSummaryService(db, env.uow, opts)
	env.dedup = NewDuplicateDetector(opts)
	env.transactions = NewTransactionService(db, env.uow, env.summaries, env.categories, env.audit, opts)
	env.commits = NewCommitService(env.uow, env.summaries, env.categories, env.audit, opts)
	env.staging = NewStagingService(db, env.uow, env.categories, env.dedup, env.commits, env.audit, opts)
	return env
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return testutil.Amount(t, s)
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := testutil.Amount(t, s)
	return &d
}

// storedSummary reads a month's summary straight from the table.
func storedSummary(t *testing.T, db *gorm.DB, userID string, month time.Time) *models.MonthlySummary {
	t.Helper()
	var s models.MonthlySummary
	err := db.Where("user_id = ? AND month = ?", userID, ledger.MonthStart(month)).First(&s).Error
	if err != nil {
		t.Fatalf("summary for %s not found: %v", ledger.FormatMonth(month), err)
	}
	return &s
}

// assertClosingInvariant checks every stored month of a user against its
// predecessor.
func assertClosingInvariant(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()

	var all []models.MonthlySummary
	if err := db.Where("user_id = ?", userID).Order("month ASC").Find(&all).Error; err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	byMonth := make(map[string]models.MonthlySummary, len(all))
	for _, s := range all {
		byMonth[ledger.FormatMonth(s.Month)] = s
	}
	for _, s := range all {
		prev := decimal.Zero
		if p, ok := byMonth[ledger.FormatMonth(ledger.PrevMonth(s.Month))]; ok {
			prev = p.ClosingBalance
		}
		want := s.Totals().Closing(prev)
		if !want.Equal(s.ClosingBalance) {
			t.Errorf("month %s: closing %s, want %s", ledger.FormatMonth(s.Month), s.ClosingBalance, want)
		}
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
