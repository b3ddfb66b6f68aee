// Package errors provides the application error taxonomy. Service code
// returns *AppError values so handlers can answer with a stable code and
// status without leaking storage details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code, so a wrapped or re-messaged copy still
// matches its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
	ErrRateLimited        = &AppError{Code: "RATE_LIMITED", Message: "Too many requests, try again later", StatusCode: http.StatusTooManyRequests}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Category errors.
var (
	ErrCategoryNotFound     = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryKindMismatch = &AppError{Code: "CATEGORY_KIND_MISMATCH", Message: "Category kind does not match transaction kind", StatusCode: http.StatusBadRequest}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidKind         = &AppError{Code: "INVALID_KIND", Message: "Unsupported transaction kind", StatusCode: http.StatusBadRequest}
	ErrValidationFailed    = &AppError{Code: "VALIDATION_FAILED", Message: "Transaction failed validation", StatusCode: http.StatusBadRequest}
)

// Summary errors.
var (
	ErrSummaryNotFound = &AppError{Code: "SUMMARY_NOT_FOUND", Message: "No summary exists for this month", StatusCode: http.StatusNotFound}
)

// Import and staging errors.
var (
	ErrImportTooLarge          = &AppError{Code: "IMPORT_TOO_LARGE", Message: "Import file exceeds the configured limits", StatusCode: http.StatusRequestEntityTooLarge}
	ErrUnsupportedImportFormat = &AppError{Code: "UNSUPPORTED_IMPORT_FORMAT", Message: "Unsupported import format", StatusCode: http.StatusBadRequest}
	ErrInvalidImportFile       = &AppError{Code: "INVALID_IMPORT_FILE", Message: "Import file could not be parsed", StatusCode: http.StatusBadRequest}
	ErrPendingNotFound         = &AppError{Code: "PENDING_TRANSACTION_NOT_FOUND", Message: "Pending transaction not found", StatusCode: http.StatusNotFound}
	ErrPendingExpired          = &AppError{Code: "PENDING_TRANSACTION_EXPIRED", Message: "Pending transaction has expired", StatusCode: http.StatusGone}
	ErrTooManyIDs              = &AppError{Code: "TOO_MANY_IDS", Message: "Too many ids in one commit request", StatusCode: http.StatusBadRequest}
	ErrNothingStaged           = &AppError{Code: "NOTHING_STAGED", Message: "No row of the import file was valid", StatusCode: http.StatusUnprocessableEntity}
	ErrNothingCommitted        = &AppError{Code: "NOTHING_COMMITTED", Message: "None of the requested rows could be committed", StatusCode: http.StatusUnprocessableEntity}
)
