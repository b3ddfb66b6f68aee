package ledger

import "github.com/shopspring/decimal"

// Totals are the five additive buckets of one month.
type Totals struct {
	Income      decimal.Decimal
	Needs       decimal.Decimal
	Wants       decimal.Decimal
	Reserves    decimal.Decimal
	Investments decimal.Decimal
}

// Get returns the value held in bucket b. BucketNone is always zero.
func (t Totals) Get(b Bucket) decimal.Decimal {
	switch b {
	case BucketIncome:
		return t.Income
	case BucketNeeds:
		return t.Needs
	case BucketWants:
		return t.Wants
	case BucketReserves:
		return t.Reserves
	case BucketInvestments:
		return t.Investments
	default:
		return decimal.Zero
	}
}

// Add adds delta to bucket b. Adding to BucketNone does nothing.
func (t *Totals) Add(b Bucket, delta decimal.Decimal) {
	switch b {
	case BucketIncome:
		t.Income = t.Income.Add(delta)
	case BucketNeeds:
		t.Needs = t.Needs.Add(delta)
	case BucketWants:
		t.Wants = t.Wants.Add(delta)
	case BucketReserves:
		t.Reserves = t.Reserves.Add(delta)
	case BucketInvestments:
		t.Investments = t.Investments.Add(delta)
	}
}

// Closing is prev + income - needs - wants - reserves - investments.
func (t Totals) Closing(prev decimal.Decimal) decimal.Decimal {
	return prev.
		Add(t.Income).
		Sub(t.Needs).
		Sub(t.Wants).
		Sub(t.Reserves).
		Sub(t.Investments)
}

// Round rounds every bucket to scale decimal places.
func (t Totals) Round(scale int32) Totals {
	return Totals{
		Income:      t.Income.Round(scale),
		Needs:       t.Needs.Round(scale),
		Wants:       t.Wants.Round(scale),
		Reserves:    t.Reserves.Round(scale),
		Investments: t.Investments.Round(scale),
	}
}

// Equal compares bucket by bucket, ignoring representation differences.
func (t Totals) Equal(o Totals) bool {
	return t.Income.Equal(o.Income) &&
		t.Needs.Equal(o.Needs) &&
		t.Wants.Equal(o.Wants) &&
		t.Reserves.Equal(o.Reserves) &&
		t.Investments.Equal(o.Investments)
}
