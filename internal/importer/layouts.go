package importer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"budgetledger/internal/ledger"
)

//go:embed layouts.yaml
var layoutsYAML []byte

// Layout maps a bank's CSV export onto ledger fields. A file matches a layout
// when its header contains every column the layout lists.
type Layout struct {
	Name               string   `yaml:"name"`
	Columns            []string `yaml:"columns"`
	DateColumn         string   `yaml:"date_column"`
	DateFormats        []string `yaml:"date_formats"`
	AmountColumn       string   `yaml:"amount_column"`
	DescriptionColumns []string `yaml:"description_columns"`
	DirectionColumn    string   `yaml:"direction_column"`
	CreditValues       []string `yaml:"credit_values"`
	DebitValues        []string `yaml:"debit_values"`
	DefaultOutflowKind string   `yaml:"default_outflow_kind"`
}

type layoutFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// LoadLayouts parses a layout table. An empty input yields the built-in set.
func LoadLayouts(data []byte) ([]Layout, error) {
	if len(data) == 0 {
		data = layoutsYAML
	}
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	for i := range f.Layouts {
		l := &f.Layouts[i]
		if l.Name == "" || l.DateColumn == "" || l.AmountColumn == "" || len(l.DescriptionColumns) == 0 {
			return nil, fmt.Errorf("layout %d: name, date_column, amount_column and description_columns are required", i)
		}
		if l.DefaultOutflowKind == "" {
			l.DefaultOutflowKind = string(ledger.KindWants)
		}
		k, err := ledger.ParseKind(l.DefaultOutflowKind)
		if err != nil || ledger.IsIncome(k) {
			return nil, fmt.Errorf("layout %s: default_outflow_kind %q is not an outflow kind", l.Name, l.DefaultOutflowKind)
		}
		l.Columns = lowerAll(l.Columns)
		l.DateColumn = normalizeHeader(l.DateColumn)
		l.AmountColumn = normalizeHeader(l.AmountColumn)
		l.DirectionColumn = normalizeHeader(l.DirectionColumn)
		l.DescriptionColumns = lowerAll(l.DescriptionColumns)
		l.CreditValues = lowerAll(l.CreditValues)
		l.DebitValues = lowerAll(l.DebitValues)
	}
	return f.Layouts, nil
}

// DefaultLayouts returns the embedded layout table.
func DefaultLayouts() []Layout {
	layouts, err := LoadLayouts(nil)
	if err != nil {
		panic(err)
	}
	return layouts
}

// Matches reports whether header carries every column of the layout.
func (l Layout) Matches(header map[string]int) bool {
	if len(l.Columns) == 0 {
		return false
	}
	for _, col := range l.Columns {
		if _, ok := header[col]; !ok {
			return false
		}
	}
	return true
}

// Row converts a raw record into the common row shape. The amount is stored
// unsigned; the direction column, or the sign when the direction is unknown,
// selects income versus the layout's outflow kind.
func (l Layout) Row(line int, raw map[string]string) Row {
	row := Row{Line: line, Layout: l.Name, Raw: raw}

	for _, col := range l.DescriptionColumns {
		if v := strings.TrimSpace(raw[col]); v != "" {
			row.Description = v
			break
		}
	}

	row.Date = l.date(raw[l.DateColumn])

	amountText := raw[l.AmountColumn]
	amount, err := ledger.ParseAmount(amountText)
	if err != nil {
		// Leave the text for validation to reject with a row error.
		row.Amount = amountText
		row.Kind = l.DefaultOutflowKind
		return row
	}

	income := amount.IsPositive()
	switch dir := strings.ToLower(strings.TrimSpace(raw[l.DirectionColumn])); {
	case l.DirectionColumn == "" || dir == "":
	case contains(l.CreditValues, dir):
		income = true
	case contains(l.DebitValues, dir):
		income = false
	}

	if income {
		row.Kind = string(ledger.KindIncome)
	} else {
		row.Kind = l.DefaultOutflowKind
	}
	row.Amount = amount.Abs().String()
	return row
}

// date rewrites the column into ISO form when one of the layout's formats
// applies, otherwise hands the text through unchanged.
func (l Layout) date(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || len(l.DateFormats) == 0 {
		return text
	}
	t, err := ledger.ParseDateLayouts(text, l.DateFormats)
	if err != nil {
		return text
	}
	return t.Format("2006-01-02")
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = normalizeHeader(s)
	}
	return out
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
