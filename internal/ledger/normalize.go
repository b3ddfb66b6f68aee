package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	DefaultScale          int32 = 2
	DefaultMaxFutureYears       = 1

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// DefaultMaxAmount is the exclusive upper bound used when none is configured.
var DefaultMaxAmount = decimal.NewFromInt(1_000_000_000)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	dayLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
	"02.01.2006",
	"01/02/2006",
}

var (
	currencyCode = regexp.MustCompile(`^[A-Z]{3}\s*|\s*[A-Z]{3}$`)
	amountShape  = regexp.MustCompile(`^[0-9.,+\-()]+$`)
)

// Normalizer canonicalizes raw amounts and dates into the fixed-precision,
// calendar-day form used for storage and dedup keys.
type Normalizer struct {
	Scale          int32
	MaxAmount      decimal.Decimal
	MaxFutureYears int
	Now            func() time.Time
}

// NewNormalizer returns a Normalizer with the default bounds.
func NewNormalizer() Normalizer {
	return Normalizer{
		Scale:          DefaultScale,
		MaxAmount:      DefaultMaxAmount,
		MaxFutureYears: DefaultMaxFutureYears,
		Now:            time.Now,
	}
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// Amount rounds d to the configured scale.
func (n Normalizer) Amount(d decimal.Decimal) decimal.Decimal {
	return d.Round(n.Scale)
}

// Format renders d with exactly Scale decimal places.
func (n Normalizer) Format(d decimal.Decimal) string {
	return d.StringFixed(n.Scale)
}

// Key is the dedup identity of a (date, amount) pair: calendar day plus
// the fixed-precision amount string.
func (n Normalizer) Key(date time.Time, amount decimal.Decimal) string {
	return Day(date).Format(dayLayout) + "|" + n.Format(n.Amount(amount))
}

// ValidateAmount checks that d is non-negative and under MaxAmount, and
// returns it rounded to the configured scale.
func (n Normalizer) ValidateAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, errors.New("amount must not be negative")
	}
	rounded := n.Amount(d)
	if !n.MaxAmount.IsZero() && rounded.GreaterThanOrEqual(n.MaxAmount) {
		return decimal.Zero, fmt.Errorf("amount must be less than %s", n.MaxAmount.String())
	}
	return rounded, nil
}

// ValidateDate rejects zero dates and dates more than MaxFutureYears ahead.
// The returned date is truncated to its calendar day.
func (n Normalizer) ValidateDate(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, errors.New("date is required")
	}
	day := Day(t)
	limit := Day(n.now()).AddDate(n.MaxFutureYears, 0, 0)
	if day.After(limit) {
		return time.Time{}, fmt.Errorf("date %s is more than %d year(s) in the future", day.Format(dayLayout), n.MaxFutureYears)
	}
	return day, nil
}

// ParseAmount parses amounts the way bank exports write them: currency
// symbols and ISO codes, thousands separators, comma or dot decimals, a
// leading or trailing sign and accounting parentheses are accepted. Anything
// else left after stripping those, exponents included, is rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "−", "-"))
	if s == "" {
		return decimal.Zero, errors.New("amount is required")
	}

	s = currencyCode.ReplaceAllString(s, "")
	s = strings.Map(dropAmountNoise, s)
	if !amountShape.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.ContainsAny(s, "()") {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" || strings.ContainsAny(s, "+-") {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// dropAmountNoise removes whitespace, currency symbols and apostrophe
// grouping marks.
func dropAmountNoise(r rune) rune {
	if unicode.IsSpace(r) || unicode.Is(unicode.Zs, r) || unicode.Is(unicode.Sc, r) || r == '\'' {
		return -1
	}
	return r
}

// normalizeSeparators rewrites s so the only separator left is a dot before
// the fractional part. A lone comma followed by exactly three digits is
// read as a thousands separator.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ParseDate tries each supported layout and returns the calendar day.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// ParseDateLayouts is ParseDate restricted to the given layouts.
func ParseDateLayouts(raw string, layouts []string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// Day returns midnight UTC of t's calendar day in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month at midnight UTC.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// NextMonth returns the first day of the month after t's.
func NextMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// PrevMonth returns the first day of the month before t's.
func PrevMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, -1, 0)
}

// ParseMonth parses a YYYY-MM month identity.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return MonthStart(t), nil
}

// FormatMonth renders a month identity as YYYY-MM.
func FormatMonth(t time.Time) string {
	return t.Format(monthLayout)
}
