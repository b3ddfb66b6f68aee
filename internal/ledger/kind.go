// Package ledger holds the pure bookkeeping rules shared by storage, import
// and aggregation: the closed set of transaction kinds, the summary bucket
// each kind folds into, and amount/date canonicalization.
package ledger

import (
	"fmt"
	"strings"
)

// Kind is the categorical bucket a transaction belongs to.
type Kind string

const (
	KindIncome      Kind = "income"
	KindNeeds       Kind = "needs"
	KindWants       Kind = "wants"
	KindReserves    Kind = "reserves"
	KindInvestments Kind = "investments"
	KindRollover    Kind = "rollover"
)

var allKinds = []Kind{
	KindIncome,
	KindNeeds,
	KindWants,
	KindReserves,
	KindInvestments,
	KindRollover,
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// ParseKind matches s case-insensitively against the known kinds.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// Bucket is one of the five additive totals on a monthly summary.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketIncome
	BucketNeeds
	BucketWants
	BucketReserves
	BucketInvestments
)

func (b Bucket) String() string {
	switch b {
	case BucketIncome:
		return "income"
	case BucketNeeds:
		return "needs"
	case BucketWants:
		return "wants"
	case BucketReserves:
		return "reserves"
	case BucketInvestments:
		return "investments"
	default:
		return "none"
	}
}

type classification struct {
	bucket Bucket
	income bool
}

// kindTable must cover every entry in allKinds; init enforces it.
var kindTable = map[Kind]classification{
	KindIncome:      {bucket: BucketIncome, income: true},
	KindNeeds:       {bucket: BucketNeeds},
	KindWants:       {bucket: BucketWants},
	KindReserves:    {bucket: BucketReserves},
	KindInvestments: {bucket: BucketInvestments},
	KindRollover:    {bucket: BucketNone},
}

func init() {
	if err := checkKindTable(allKinds, kindTable); err != nil {
		panic(err)
	}
}

func checkKindTable(kinds []Kind, table map[Kind]classification) error {
	for _, k := range kinds {
		if _, ok := table[k]; !ok {
			return fmt.Errorf("ledger: kind %q has no bucket mapping", k)
		}
	}
	if len(table) != len(kinds) {
		return fmt.Errorf("ledger: bucket table has %d entries for %d kinds", len(table), len(kinds))
	}
	return nil
}

// BucketOf returns the summary bucket k accumulates into. Unknown kinds and
// rollover map to BucketNone.
func BucketOf(k Kind) Bucket {
	return kindTable[k].bucket
}

// IsIncome reports whether k adds to the balance rather than drawing from it.
func IsIncome(k Kind) bool {
	return kindTable[k].income
}
