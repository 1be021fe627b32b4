package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName folds a display name for lookups: no diacritics, lower
// case, dashes and underscores as spaces, collapsed whitespace.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// NameMatches reports whether query names the person, ignoring case and
// diacritics. A query matches a whole name or any of its words prefixes.
func NameMatches(query, name string) bool {
	q := NormalizePersonName(query)
	if q == "" {
		return false
	}
	n := NormalizePersonName(name)
	if n == q || strings.HasPrefix(n, q+" ") {
		return true
	}
	for _, word := range strings.Fields(n) {
		if strings.HasPrefix(word, q) {
			return true
		}
	}
	return false
}
