package importer

import (
	"strings"

	"budgetledger/internal/ledger"
	"budgetledger/internal/uuid"
)

// Validate checks a row's fields and returns its normalized form. The first
// failing field decides the error. Category ownership and kind compatibility
// need storage and are checked by the caller.
func Validate(row Row, n ledger.Normalizer) (Candidate, error) {
	fail := func(field, msg string) (Candidate, error) {
		return Candidate{}, &RowError{Line: row.Line, Field: field, Message: msg}
	}

	desc := ledger.SanitizeDescription(row.Description)
	if desc == "" {
		return fail("description", "description is required")
	}

	kind, err := ledger.ParseKind(row.Kind)
	if err != nil {
		return fail("kind", err.Error())
	}

	amount, err := ledger.ParseAmount(row.Amount)
	if err != nil {
		return fail("amount", err.Error())
	}
	amount, err = n.ValidateAmount(amount)
	if err != nil {
		return fail("amount", err.Error())
	}

	date, err := ledger.ParseDate(row.Date)
	if err != nil {
		return fail("date", err.Error())
	}
	date, err = n.ValidateDate(date)
	if err != nil {
		return fail("date", err.Error())
	}

	c := Candidate{
		Line:        row.Line,
		Description: desc,
		Amount:      amount,
		Kind:        kind,
		Date:        date,
		Raw:         row.Raw,
	}
	if ref := strings.TrimSpace(row.CategoryID); ref != "" {
		id, err := uuid.Parse(ref)
		if err != nil {
			return fail("category_id", "category reference is not a valid id")
		}
		c.CategoryID = &id
	}
	return c, nil
}
