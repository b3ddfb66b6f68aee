package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"budgetledger/internal/logger"
)

const defaultAttempts = 3

// UnitOfWork runs a block of storage operations inside one database
// transaction. Everything fn does through tx becomes visible together or
// not at all.
type UnitOfWork struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
	attempts  int
}

// NewUnitOfWork binds a unit of work runner to db with the given isolation.
func NewUnitOfWork(db *gorm.DB, isolation sql.IsolationLevel) *UnitOfWork {
	return &UnitOfWork{db: db, isolation: isolation, attempts: defaultAttempts}
}

// DB returns the connection outside of any transaction, for reads.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

// Do executes fn in a transaction. A returned error or panic rolls back.
// Serialization failures reported by postgres are retried with a fresh
// transaction, so fn must build its writes from scratch on each call.
// Caller cancellation does not interrupt a started unit.
func (u *UnitOfWork) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx = context.WithoutCancel(ctx)
	opts := &sql.TxOptions{Isolation: u.isolation}

	var err error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		err = u.db.WithContext(ctx).Transaction(fn, opts)
		if !isSerializationFailure(err) {
			return err
		}
		logger.Get().Warnw("unit of work hit a serialization conflict",
			"attempt", attempt,
			"error", err,
		)
	}
	return err
}

// isSerializationFailure matches postgres 40001 and 40P01.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
