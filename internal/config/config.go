// Package config loads application settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"budgetledger/internal/ledger"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port string

	// Database
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBTxIsolation string
	DBMaxOpen     int
	DBMaxIdle     int
	MigrationsDir string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// OperatorAPIKey guards the operator endpoints; empty disables them.
	OperatorAPIKey string

	// StagingTTL is how long a staged row stays committable after import
	// (STAGING_TTL_HOURS, default 24h). Rows at or past expiry are refused.
	StagingTTL time.Duration
	// ImportMaxRows is the row ceiling per import (IMPORT_MAX_ROWS, default
	// 1000). A file over it is rejected whole and nothing is staged.
	ImportMaxRows         int
	ImportMaxBytes        int64
	ImportMaxErrors       int
	CommitMaxIDs          int
	ImportRateLimitPerMin int
	// AmountDecimalPlaces is the fixed precision amounts are rounded to
	// before storage and dedup comparison (AMOUNT_DECIMAL_PLACES, default 2).
	AmountDecimalPlaces  int32
	MaxTransactionAmount decimal.Decimal
	MaxFutureYears       int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env: getEnv("ENV", "development"),

		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "budgetledger"),
		DBPassword:    getEnv("DB_PASSWORD", "budgetledger"),
		DBName:        getEnv("DB_NAME", "budgetledger"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBTxIsolation: strings.ToLower(getEnv("DB_TX_ISOLATION", "serializable")),
		DBMaxOpen:     getEnvInt("DB_MAX_OPEN_CONNS", 25, 1, 1000),
		DBMaxIdle:     getEnvInt("DB_MAX_IDLE_CONNS", 5, 0, 1000),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		OperatorAPIKey: getEnv("OPERATOR_API_KEY", ""),

		StagingTTL:            time.Duration(getEnvInt("STAGING_TTL_HOURS", 24, 1, 24*365)) * time.Hour,
		ImportMaxRows:         getEnvInt("IMPORT_MAX_ROWS", 1000, 1, 1_000_000),
		ImportMaxBytes:        int64(getEnvInt("IMPORT_MAX_BYTES", 5<<20, 1024, 1<<30)),
		ImportMaxErrors:       getEnvInt("IMPORT_MAX_ERRORS", 20, 1, 10_000),
		CommitMaxIDs:          getEnvInt("COMMIT_MAX_IDS", 500, 1, 100_000),
		ImportRateLimitPerMin: getEnvInt("IMPORT_RATE_LIMIT_PER_MINUTE", 30, 1, 100_000),
		AmountDecimalPlaces:   int32(getEnvInt("AMOUNT_DECIMAL_PLACES", int(ledger.DefaultScale), 0, 4)),
		MaxFutureYears:        getEnvInt("MAX_FUTURE_YEARS", ledger.DefaultMaxFutureYears, 0, 100),
	}

	// Parse JWT expiration duration
	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	maxStr := getEnv("MAX_TRANSACTION_AMOUNT", ledger.DefaultMaxAmount.String())
	maxAmount, err := decimal.NewFromString(maxStr)
	if err != nil || !maxAmount.IsPositive() {
		log.Printf("Warning: invalid MAX_TRANSACTION_AMOUNT value '%s', falling back to %s\n", maxStr, ledger.DefaultMaxAmount)
		maxAmount = ledger.DefaultMaxAmount
	}
	config.MaxTransactionAmount = maxAmount

	switch config.DBTxIsolation {
	case "serializable", "repeatable_read", "read_committed":
	default:
		return nil, fmt.Errorf("invalid DB_TX_ISOLATION %q (use serializable, repeatable_read or read_committed)", config.DBTxIsolation)
	}

	if config.DBMaxIdle > config.DBMaxOpen {
		config.DBMaxIdle = config.DBMaxOpen
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set installs cfg as the process configuration. Used by tests and by
// binaries that build their Config programmatically.
func Set(cfg *Config) {
	appConfig = cfg
}

// Normalizer builds the amount/date normalizer from the configured bounds.
func (c *Config) Normalizer() ledger.Normalizer {
	n := ledger.NewNormalizer()
	n.Scale = c.AmountDecimalPlaces
	n.MaxFutureYears = c.MaxFutureYears
	if c.MaxTransactionAmount.IsPositive() {
		n.MaxAmount = c.MaxTransactionAmount
	}
	return n
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer variable, falling back to defaultValue when
// it is unset, malformed or outside [min, max].
func getEnvInt(key string, defaultValue, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < min || n > max {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}
