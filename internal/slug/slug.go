// Package slug turns free-form product names into stable identifiers and
// derives comparison keys from them.
package slug

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator joins the two product identifiers of a comparison key.
const Separator = "-vs-"

// ErrEmptyIdentifier is returned when a product name normalizes to "".
var ErrEmptyIdentifier = errors.New("product identifier is empty")

var lower = cases.Lower(language.Und)

// Normalize lower-cases name, drops every rune that is not a letter, digit,
// whitespace or hyphen, and joins the remaining words with single hyphens.
// Leading and trailing hyphens are trimmed. Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	s := lower.String(name)

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			pendingHyphen = true
		}
	}
	return b.String()
}

// ComparisonKey returns Normalize(a) + "-vs-" + Normalize(b). The key is
// order-sensitive.
func ComparisonKey(a, b string) (string, error) {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return "", ErrEmptyIdentifier
	}
	return na + Separator + nb, nil
}
