package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"budgetledger/internal/ledger"
	"budgetledger/internal/models"
	"budgetledger/internal/pagination"
	"budgetledger/internal/testutil"
)

const missingID = "0190d7a4-8f5e-7c3a-b8e2-3f4a5b6c7d8e"

func newCategoryEnv(t *testing.T) (*gorm.DB, CategoryServicer, *models.User) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	return db, NewCategoryService(db), testutil.CreateTestUser(t, db)
}

func TestCreateCategory(t *testing.T) {
	t.Run("stores trimmed name and kind", func(t *testing.T) {
		_, svc, user := newCategoryEnv(t)

		cat, err := svc.CreateCategory(user.ID, "  Groceries ", ledger.KindNeeds, "Food shopping", "cart", "#FF0000")
		require.NoError(t, err)
		assert.NotEmpty(t, cat.ID)
		assert.Equal(t, "Groceries", cat.Name)
		assert.Equal(t, ledger.KindNeeds, cat.Kind)
		assert.Equal(t, "Food shopping", cat.Description)
	})

	t.Run("names are unique per user ignoring case", func(t *testing.T) {
		db, svc, user := newCategoryEnv(t)
		other := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, "Food", ledger.KindNeeds, "", "", "")
		require.NoError(t, err)

		_, err = svc.CreateCategory(user.ID, "FOOD", ledger.KindWants, "", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = svc.CreateCategory(other.ID, "Food", ledger.KindNeeds, "", "", "")
		assert.NoError(t, err)
	})

	t.Run("deleted names can be reused", func(t *testing.T) {
		_, svc, user := newCategoryEnv(t)

		old, err := svc.CreateCategory(user.ID, "Gym", ledger.KindWants, "", "", "")
		require.NoError(t, err)
		require.NoError(t, svc.DeleteCategory(user.ID, old.ID))

		fresh, err := svc.CreateCategory(user.ID, "Gym", ledger.KindNeeds, "", "", "")
		require.NoError(t, err)
		assert.NotEqual(t, old.ID, fresh.ID)
	})

	for _, tc := range []struct {
		name string
		in   string
		kind ledger.Kind
		code string
	}{
		{"blank name", "   ", ledger.KindNeeds, "INVALID_INPUT"},
		{"unknown kind", "Toys", ledger.Kind("expense"), "INVALID_KIND"},
		{"empty kind", "Toys", "", "INVALID_KIND"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, svc, user := newCategoryEnv(t)
			_, err := svc.CreateCategory(user.ID, tc.in, tc.kind, "", "", "")
			testutil.AssertAppError(t, err, tc.code)
		})
	}
}

func TestGetUserCategories(t *testing.T) {
	db, svc, user := newCategoryEnv(t)
	other := testutil.CreateTestUser(t, db)

	for _, k := range []ledger.Kind{ledger.KindWants, ledger.KindWants, ledger.KindInvestments, ledger.KindIncome, ledger.KindNeeds} {
		testutil.CreateTestCategory(t, db, user.ID, k)
	}
	testutil.CreateTestCategory(t, db, other.ID, ledger.KindWants)

	t.Run("scoped to the user", func(t *testing.T) {
		result, err := svc.GetUserCategories(user.ID, nil, pagination.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(5), result.TotalItems)
		for _, c := range result.Data {
			assert.Equal(t, user.ID, c.UserID)
		}
	})

	t.Run("kind filter", func(t *testing.T) {
		wants := ledger.KindWants
		result, err := svc.GetUserCategories(user.ID, &wants, pagination.PageRequest{})
		require.NoError(t, err)
		require.Len(t, result.Data, 2)
		for _, c := range result.Data {
			assert.Equal(t, ledger.KindWants, c.Kind)
		}
	})

	t.Run("pages", func(t *testing.T) {
		result, err := svc.GetUserCategories(user.ID, nil, pagination.PageRequest{Page: 3, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalPages)
		assert.Len(t, result.Data, 1)
	})
}

func TestGetCategoryByID(t *testing.T) {
	db, svc, user := newCategoryEnv(t)
	other := testutil.CreateTestUser(t, db)
	mine := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)
	theirs := testutil.CreateTestCategory(t, db, other.ID, ledger.KindNeeds)

	got, err := svc.GetCategoryByID(user.ID, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = svc.GetCategoryByID(user.ID, theirs.ID)
	testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

	_, err = svc.GetCategoryByID(user.ID, missingID)
	testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
}

func TestUpdateCategory(t *testing.T) {
	t.Run("changes presentation fields only", func(t *testing.T) {
		db, svc, user := newCategoryEnv(t)
		cat := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)

		updated, err := svc.UpdateCategory(user.ID, cat.ID, "Housing", "Rent and utilities", "home", "#00FF00")
		require.NoError(t, err)
		assert.Equal(t, "Housing", updated.Name)
		assert.Equal(t, "Rent and utilities", updated.Description)
		assert.Equal(t, "home", updated.Icon)
		assert.Equal(t, "#00FF00", updated.Color)
		assert.Equal(t, ledger.KindNeeds, updated.Kind)

		var stored models.Category
		require.NoError(t, db.First(&stored, "id = ?", cat.ID).Error)
		assert.Equal(t, "Housing", stored.Name)
	})

	t.Run("empty fields are left alone", func(t *testing.T) {
		db, svc, user := newCategoryEnv(t)
		cat := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)

		updated, err := svc.UpdateCategory(user.ID, cat.ID, "", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, cat.Name, updated.Name)
	})

	t.Run("renaming onto another category", func(t *testing.T) {
		db, svc, user := newCategoryEnv(t)
		first := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)
		second := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)

		_, err := svc.UpdateCategory(user.ID, second.ID, first.Name, "", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("case-only rename of itself", func(t *testing.T) {
		_, svc, user := newCategoryEnv(t)
		cat, err := svc.CreateCategory(user.ID, "rent", ledger.KindNeeds, "", "", "")
		require.NoError(t, err)

		updated, err := svc.UpdateCategory(user.ID, cat.ID, "Rent", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, "Rent", updated.Name)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, svc, user := newCategoryEnv(t)
		_, err := svc.UpdateCategory(user.ID, missingID, "Name", "", "", "")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestDeleteCategory(t *testing.T) {
	t.Run("soft delete keeps transaction references", func(t *testing.T) {
		db, svc, user := newCategoryEnv(t)
		cat := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)
		txn := testutil.CreateTestTransaction(t, db, user.ID, ledger.KindNeeds, "10.00", testutil.Date(2025, 1, 5))
		require.NoError(t, db.Model(txn).Update("category_id", cat.ID).Error)

		require.NoError(t, svc.DeleteCategory(user.ID, cat.ID))

		_, err := svc.GetCategoryByID(user.ID, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		var count int64
		require.NoError(t, db.Unscoped().Model(&models.Category{}).Where("id = ?", cat.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		var stored models.Transaction
		require.NoError(t, db.First(&stored, "id = ?", txn.ID).Error)
		require.NotNil(t, stored.CategoryID)
		assert.Equal(t, cat.ID, *stored.CategoryID)
	})

	t.Run("another user's category", func(t *testing.T) {
		db, svc, user := newCategoryEnv(t)
		other := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, other.ID, ledger.KindNeeds)

		testutil.AssertAppError(t, svc.DeleteCategory(user.ID, cat.ID), "CATEGORY_NOT_FOUND")
	})
}

func TestCheckCompatibility(t *testing.T) {
	db, svc, user := newCategoryEnv(t)
	other := testutil.CreateTestUser(t, db)
	needs := testutil.CreateTestCategory(t, db, user.ID, ledger.KindNeeds)
	foreign := testutil.CreateTestCategory(t, db, other.ID, ledger.KindNeeds)

	assert.NoError(t, svc.CheckCompatibility(db, user.ID, needs.ID, ledger.KindNeeds))
	testutil.AssertAppError(t, svc.CheckCompatibility(db, user.ID, needs.ID, ledger.KindWants), "CATEGORY_KIND_MISMATCH")
	testutil.AssertAppError(t, svc.CheckCompatibility(db, user.ID, foreign.ID, ledger.KindNeeds), "CATEGORY_NOT_FOUND")
	testutil.AssertAppError(t, svc.CheckCompatibility(db, user.ID, missingID, ledger.KindNeeds), "CATEGORY_NOT_FOUND")

	require.NoError(t, svc.DeleteCategory(user.ID, needs.ID))
	testutil.AssertAppError(t, svc.CheckCompatibility(db, user.ID, needs.ID, ledger.KindNeeds), "CATEGORY_NOT_FOUND")
}
