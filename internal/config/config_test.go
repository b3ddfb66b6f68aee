package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.StagingTTL)
	assert.Equal(t, 1000, cfg.ImportMaxRows)
	assert.Equal(t, int64(5<<20), cfg.ImportMaxBytes)
	assert.Equal(t, int32(2), cfg.AmountDecimalPlaces)
	assert.Equal(t, "serializable", cfg.DBTxIsolation)
	assert.Equal(t, "1000000000", cfg.MaxTransactionAmount.String())
	assert.Equal(t, 25, cfg.DBMaxOpen)
	assert.Equal(t, 5, cfg.DBMaxIdle)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
}

func TestLoad_idlePoolCappedByOpen(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("DB_MAX_IDLE_CONNS", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.DBMaxOpen)
	assert.Equal(t, 4, cfg.DBMaxIdle)
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("STAGING_TTL_HOURS", "48")
	t.Setenv("IMPORT_MAX_ROWS", "10")
	t.Setenv("AMOUNT_DECIMAL_PLACES", "3")
	t.Setenv("MAX_TRANSACTION_AMOUNT", "5000")
	t.Setenv("DB_TX_ISOLATION", "READ_COMMITTED")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.StagingTTL)
	assert.Equal(t, 10, cfg.ImportMaxRows)
	assert.Equal(t, "read_committed", cfg.DBTxIsolation)

	n := cfg.Normalizer()
	assert.Equal(t, int32(3), n.Scale)
	assert.Equal(t, "5000", n.MaxAmount.String())
}

func TestLoad_invalid_values_fall_back(t *testing.T) {
	t.Setenv("IMPORT_MAX_ROWS", "lots")
	t.Setenv("AMOUNT_DECIMAL_PLACES", "9")
	t.Setenv("MAX_TRANSACTION_AMOUNT", "-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.ImportMaxRows)
	assert.Equal(t, int32(2), cfg.AmountDecimalPlaces)
	assert.True(t, cfg.MaxTransactionAmount.IsPositive())
}

func TestLoad_rejects_unknown_isolation(t *testing.T) {
	t.Setenv("DB_TX_ISOLATION", "chaos")

	_, err := Load()
	assert.Error(t, err)
}
