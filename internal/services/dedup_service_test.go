package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetledger/internal/ledger"
	"budgetledger/internal/testutil"
)

func TestFindExisting(t *testing.T) {
	env := newLedgerEnv(t)
	user := testutil.CreateTestUser(t, env.db)
	other := testutil.CreateTestUser(t, env.db)

	testutil.CreateTestTransaction(t, env.db, user.ID, ledger.KindNeeds, "42.50", testutil.Date(2025, 1, 10))
	testutil.CreateTestTransaction(t, env.db, user.ID, ledger.KindWants, "9.99", testutil.Date(2025, 2, 1))
	testutil.CreateTestTransaction(t, env.db, other.ID, ledger.KindNeeds, "15.00", testutil.Date(2025, 1, 12))

	candidates := []DatedAmount{
		{Date: testutil.Date(2025, 1, 10), Amount: dec(t, "42.5")},
		{Date: testutil.Date(2025, 1, 10), Amount: dec(t, "42.51")},
		{Date: testutil.Date(2025, 1, 11), Amount: dec(t, "42.50")},
		{Date: testutil.Date(2025, 1, 12), Amount: dec(t, "15.00")},
		{Date: testutil.Date(2025, 2, 1), Amount: dec(t, "9.99")},
	}

	found, err := env.dedup.FindExisting(env.db, user.ID, candidates)
	require.NoError(t, err)

	n := env.opts.Normalizer
	assert.Len(t, found, 2)
	assert.Contains(t, found, n.Key(testutil.Date(2025, 1, 10), dec(t, "42.50")))
	assert.Contains(t, found, n.Key(testutil.Date(2025, 2, 1), dec(t, "9.99")))
	assert.NotContains(t, found, n.Key(testutil.Date(2025, 1, 10), dec(t, "42.51")), "one cent apart is not a duplicate")
	assert.NotContains(t, found, n.Key(testutil.Date(2025, 1, 12), dec(t, "15.00")), "other users are not consulted")
}

func TestFindExisting_IgnoresKindAndDescription(t *testing.T) {
	env := newLedgerEnv(t)
	user := testutil.CreateTestUser(t, env.db)
	testutil.CreateTestTransaction(t, env.db, user.ID, ledger.KindIncome, "100.00", testutil.Date(2025, 1, 3))

	found, err := env.dedup.FindExisting(env.db, user.ID, []DatedAmount{
		{Date: testutil.Date(2025, 1, 3), Amount: dec(t, "100")},
	})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestFindExisting_Empty(t *testing.T) {
	env := newLedgerEnv(t)
	user := testutil.CreateTestUser(t, env.db)

	found, err := env.dedup.FindExisting(env.db, user.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}
