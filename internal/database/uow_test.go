package database_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"budgetledger/internal/database"
	"budgetledger/internal/models"
	"budgetledger/internal/testutil"
)

func TestUnitOfWork_Do(t *testing.T) {
	t.Run("commits_on_success", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		uow := database.NewUnitOfWork(db, sql.LevelSerializable)

		err := uow.Do(context.Background(), func(tx *gorm.DB) error {
			return tx.Create(&models.Category{UserID: user.ID, Name: "Rent", Kind: "needs"}).Error
		})
		require.NoError(t, err)

		var count int64
		db.Model(&models.Category{}).Where("user_id = ?", user.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rolls_back_every_write_on_error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		uow := database.NewUnitOfWork(db, sql.LevelSerializable)
		boom := errors.New("boom")

		err := uow.Do(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&models.Category{UserID: user.ID, Name: "Rent", Kind: "needs"}).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.Category{UserID: user.ID, Name: "Food", Kind: "wants"}).Error; err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var count int64
		db.Model(&models.Category{}).Where("user_id = ?", user.ID).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("does_not_retry_ordinary_errors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		uow := database.NewUnitOfWork(db, sql.LevelSerializable)

		calls := 0
		_ = uow.Do(context.Background(), func(tx *gorm.DB) error {
			calls++
			return errors.New("nope")
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("retries_serialization_failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		uow := database.NewUnitOfWork(db, sql.LevelSerializable)

		calls := 0
		err := uow.Do(context.Background(), func(tx *gorm.DB) error {
			calls++
			if calls < 2 {
				return fmt.Errorf("update summary: %w", &pgconn.PgError{Code: "40001"})
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("ignores_caller_cancellation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		uow := database.NewUnitOfWork(db, sql.LevelSerializable)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := uow.Do(ctx, func(tx *gorm.DB) error {
			return tx.Create(&models.Category{UserID: user.ID, Name: "Rent", Kind: "needs"}).Error
		})
		require.NoError(t, err)
	})
}

func TestParseIsolation(t *testing.T) {
	assert.Equal(t, sql.LevelSerializable, database.ParseIsolation("serializable"))
	assert.Equal(t, sql.LevelRepeatableRead, database.ParseIsolation("repeatable_read"))
	assert.Equal(t, sql.LevelReadCommitted, database.ParseIsolation("read_committed"))
	assert.Equal(t, sql.LevelSerializable, database.ParseIsolation(""))
}
