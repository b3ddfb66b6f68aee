package ledger

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxDescriptionLength is the longest description kept, in runes.
const MaxDescriptionLength = 255

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeDescription folds compatibility characters, drops invisible
// runes and markup, and collapses whitespace. An empty result means the
// description carried no usable text.
func SanitizeDescription(s string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.Predicate(invisible)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}

	out = markupPattern.ReplaceAllString(out, " ")
	out = strings.Join(strings.Fields(out), " ")

	if utf8.RuneCountInString(out) > MaxDescriptionLength {
		out = strings.TrimSpace(string([]rune(out)[:MaxDescriptionLength]))
	}
	return out
}

// invisible keeps whitespace controls so Fields can collapse them.
func invisible(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}
