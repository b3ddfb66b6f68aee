package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"budgetledger/internal/ledger"
	"budgetledger/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Amount parses a decimal literal and fails the test if it is malformed.
func Amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given kind.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, kind ledger.Kind) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Kind:   kind,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction inserts a permanent transaction directly, without
// touching any monthly summary.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, kind ledger.Kind, amount string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		Kind:        kind,
		Amount:      Amount(t, amount),
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Date:        ledger.Day(date),
		Source:      models.TransactionSourceManual,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestPending stages one row that expires at expiresAt.
func CreateTestPending(t *testing.T, db *gorm.DB, userID string, kind ledger.Kind, amount string, date, expiresAt time.Time) *models.PendingTransaction {
	t.Helper()

	p := &models.PendingTransaction{
		UserID:      userID,
		BatchID:     fmt.Sprintf("00000000-0000-7000-8000-%012d", nextID()),
		Description: fmt.Sprintf("Pending %d", nextID()),
		Amount:      Amount(t, amount),
		Date:        ledger.Day(date),
		Kind:        kind,
		ExpiresAt:   expiresAt.UTC(),
		RawData:     "{}",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test pending transaction: %v", err)
	}
	return p
}
