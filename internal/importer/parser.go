package importer

import (
	"bytes"
	"fmt"
)

const (
	DefaultMaxRows  = 5000
	DefaultMaxBytes = 5 << 20
)

// Parser reads uploaded files into rows. Ceilings are enforced before any
// row is returned, so an oversized file yields a LimitError and nothing else.
type Parser struct {
	MaxRows  int
	MaxBytes int64
	Layouts  []Layout
}

// NewParser returns a parser with the given ceilings and the built-in bank
// layouts. Non-positive ceilings fall back to the defaults.
func NewParser(maxRows int, maxBytes int64) *Parser {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Parser{MaxRows: maxRows, MaxBytes: maxBytes, Layouts: DefaultLayouts()}
}

// Parse dispatches on format. Rows are numbered from 1 in input order,
// counting data rows only.
func (p *Parser) Parse(format Format, data []byte) ([]Row, error) {
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return nil, &LimitError{Bytes: int64(len(data)), MaxBytes: p.MaxBytes}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrMalformed)
	}

	switch format {
	case FormatCSV:
		return p.parseCSV(data)
	case FormatJSON:
		return p.parseJSON(data)
	case FormatOFX:
		return p.parseOFX(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (p *Parser) checkRows(n int) error {
	if p.MaxRows > 0 && n > p.MaxRows {
		return &LimitError{Rows: n, MaxRows: p.MaxRows}
	}
	return nil
}

// genericRow maps the column contract shared by csv and json uploads.
func genericRow(line int, raw map[string]string) Row {
	row := Row{
		Line:        line,
		Description: raw["description"],
		Amount:      raw["amount"],
		Kind:        raw["kind"],
		Date:        raw["date"],
		CategoryID:  raw["category_id"],
		Raw:         raw,
	}
	if row.Kind == "" {
		row.Kind = raw["type"]
	}
	if row.CategoryID == "" {
		row.CategoryID = raw["category"]
	}
	return row
}
