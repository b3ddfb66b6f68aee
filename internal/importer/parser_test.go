package importer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetledger/internal/ledger"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"csv": FormatCSV, "CSV": FormatCSV, ".csv": FormatCSV,
		"json": FormatJSON, "ofx": FormatOFX, "qfx": FormatOFX,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParser_CSVGeneric(t *testing.T) {
	p := NewParser(100, 1<<20)
	data := "Description,Amount,Kind,Date,Category_ID\n" +
		"Salary,1000.00,income,2025-01-05,\n" +
		",,,,\n" +
		"Rent,500.00,needs,2025-01-05,\n"

	rows, err := p.Parse(FormatCSV, []byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, "Salary", rows[0].Description)
	assert.Equal(t, "1000.00", rows[0].Amount)
	assert.Equal(t, "income", rows[0].Kind)
	assert.Equal(t, "2025-01-05", rows[0].Date)
	assert.Equal(t, "", rows[0].Layout)
	assert.Equal(t, "Salary", rows[0].Raw["description"])

	assert.Equal(t, 2, rows[1].Line)
	assert.Equal(t, "Rent", rows[1].Description)
}

func TestParser_CSVSemicolonAndBOM(t *testing.T) {
	p := NewParser(100, 1<<20)
	data := "\xef\xbb\xbfdescription;amount;kind;date\nCoffee;3,50;wants;2025-02-01\n"

	rows, err := p.Parse(FormatCSV, []byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3,50", rows[0].Amount)
	assert.Equal(t, "Coffee", rows[0].Description)
}

func TestParser_CSVWithoutAmountColumn(t *testing.T) {
	p := NewParser(100, 1<<20)
	rows, err := p.Parse(FormatCSV, []byte("date,description,kind\n2025-01-05,Coffee,wants\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Amount)

	// The missing column surfaces as a per-row failure.
	_, err = Validate(rows[0], ledger.NewNormalizer())
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "amount", rowErr.Field)
	assert.Equal(t, 1, rowErr.Line)
}

func TestParser_BankLayout(t *testing.T) {
	p := NewParser(100, 1<<20)
	data := `"Datum","Naam / Omschrijving","Rekening","Tegenrekening","Code","Af Bij","Bedrag (EUR)","Mutatiesoort","Mededelingen"
"20250105","ACME BV","NL01INGB0001","NL02RABO0002","OV","Bij","1.000,00","Overschrijving","Salaris januari"
"20250106","","NL01INGB0001","NL03ABNA0003","IC","Af","500,00","Incasso","Huur januari"
`
	rows, err := p.Parse(FormatCSV, []byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ing_nl", rows[0].Layout)
	assert.Equal(t, "ACME BV", rows[0].Description)
	assert.Equal(t, "income", rows[0].Kind)
	assert.Equal(t, "1000", rows[0].Amount)
	assert.Equal(t, "2025-01-05", rows[0].Date)

	// Falls back to the less specific description column.
	assert.Equal(t, "Huur januari", rows[1].Description)
	assert.Equal(t, "wants", rows[1].Kind)
	assert.Equal(t, "500", rows[1].Amount)
	assert.Equal(t, "2025-01-06", rows[1].Date)
}

func TestParser_BankLayoutSignFallback(t *testing.T) {
	p := NewParser(100, 1<<20)
	data := "Details,Posting Date,Description,Amount,Type,Balance\n" +
		",01/15/2025,GROCERY STORE,-42.17,DEBIT_CARD,100.00\n" +
		",01/16/2025,REFUND,12.00,ACH_CREDIT,112.00\n"

	rows, err := p.Parse(FormatCSV, []byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "chase_us", rows[0].Layout)
	assert.Equal(t, "wants", rows[0].Kind)
	assert.Equal(t, "42.17", rows[0].Amount)
	assert.Equal(t, "2025-01-15", rows[0].Date)
	assert.Equal(t, "income", rows[1].Kind)
}

func TestParser_JSON(t *testing.T) {
	p := NewParser(100, 1<<20)
	data := `[
		{"description": "Salary", "amount": 1000.00, "kind": "income", "date": "2025-01-05"},
		{},
		{"description": "Rent", "amount": "500.00", "kind": "needs", "date": "2025-01-05", "category_id": null}
	]`

	rows, err := p.Parse(FormatJSON, []byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1000", rows[0].Amount)
	assert.Equal(t, "Rent", rows[1].Description)
	assert.Equal(t, "", rows[1].CategoryID)
	assert.Equal(t, 2, rows[1].Line)
}

func TestParser_JSONExponentAmounts(t *testing.T) {
	p := NewParser(100, 1<<20)
	data := `[
		{"description": "Bonus", "amount": 1.5E2, "kind": "income", "date": "2025-01-05"},
		{"description": "Windfall", "amount": 1e21, "kind": "income", "date": "2025-01-05"}
	]`

	rows, err := p.Parse(FormatJSON, []byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "150", rows[0].Amount)
	assert.Equal(t, "1000000000000000000000", rows[1].Amount)

	n := ledger.NewNormalizer()
	c, err := Validate(rows[0], n)
	require.NoError(t, err)
	assert.Equal(t, "150.00", c.Amount.StringFixed(2))

	_, err = Validate(rows[1], n)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "amount", rowErr.Field)
	assert.Equal(t, 2, rowErr.Line)
}

func TestParser_JSONMalformed(t *testing.T) {
	p := NewParser(100, 1<<20)

	_, err := p.Parse(FormatJSON, []byte(`{"description": "not an array"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = p.Parse(FormatJSON, []byte(`[{"amount": {"nested": true}}]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParser_EmptyFile(t *testing.T) {
	p := NewParser(100, 1<<20)
	_, err := p.Parse(FormatCSV, []byte("  \n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParser_UnsupportedFormat(t *testing.T) {
	p := NewParser(100, 1<<20)
	_, err := p.Parse(Format("xlsx"), []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParser_RowCeiling(t *testing.T) {
	p := NewParser(3, 1<<20)

	var b strings.Builder
	b.WriteString("description,amount,kind,date\n")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, "Row %d,1.00,wants,2025-01-01\n", i)
	}

	rows, err := p.Parse(FormatCSV, []byte(b.String()))
	assert.Nil(t, rows)

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 4, limitErr.Rows)
	assert.Equal(t, 3, limitErr.MaxRows)
	assert.Contains(t, err.Error(), "4 rows")
	assert.Contains(t, err.Error(), "3 rows")
}

func TestParser_RowCeilingAtLimit(t *testing.T) {
	p := NewParser(2, 1<<20)
	data := "description,amount,kind,date\nA,1,wants,2025-01-01\nB,2,wants,2025-01-01\n"

	rows, err := p.Parse(FormatCSV, []byte(data))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestParser_JSONRowCeiling(t *testing.T) {
	p := NewParser(1, 1<<20)
	_, err := p.Parse(FormatJSON, []byte(`[{"amount":"1"},{"amount":"2"}]`))

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 2, limitErr.Rows)
}

func TestParser_ByteCeiling(t *testing.T) {
	p := NewParser(100, 16)
	_, err := p.Parse(FormatCSV, []byte("description,amount,kind,date\n"))

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, int64(16), limitErr.MaxBytes)
	assert.Contains(t, err.Error(), "bytes")
}
