// Package importer turns uploaded statement files into candidate ledger
// rows. It knows nothing about storage: ownership checks, duplicate
// detection and staging happen in the services layer.
package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetledger/internal/ledger"
)

// Format is the declared shape of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatOFX  Format = "ofx"
)

var (
	// ErrUnsupportedFormat is returned for formats other than csv, json or ofx.
	ErrUnsupportedFormat = errors.New("unsupported import format")
	// ErrMalformed wraps every structural parse failure.
	ErrMalformed = errors.New("malformed import file")
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv", "tsv", "txt":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "ofx", "qfx":
		return FormatOFX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// LimitError reports an input that exceeds the configured ceilings. Nothing
// from such a file is processed.
type LimitError struct {
	Rows     int
	MaxRows  int
	Bytes    int64
	MaxBytes int64
}

func (e *LimitError) Error() string {
	if e.MaxBytes > 0 && e.Bytes > e.MaxBytes {
		return fmt.Sprintf("file is %d bytes, the maximum is %d bytes", e.Bytes, e.MaxBytes)
	}
	return fmt.Sprintf("file has %d rows, the maximum is %d rows", e.Rows, e.MaxRows)
}

// Row is one input record with its fields still in textual form. Raw keeps
// the record exactly as read for the audit trail.
type Row struct {
	Line        int
	Description string
	Amount      string
	Kind        string
	Date        string
	CategoryID  string
	Layout      string
	Raw         map[string]string
}

// Candidate is a validated row ready for duplicate detection and staging.
type Candidate struct {
	Line        int
	Description string
	Amount      decimal.Decimal
	Kind        ledger.Kind
	Date        time.Time
	CategoryID  *string
	Raw         map[string]string
}

// RowError describes why a single row was rejected.
type RowError struct {
	Line    int
	Field   string
	Message string
}

func (e *RowError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("row %d: %s", e.Line, e.Message)
	}
	return e.Message
}
