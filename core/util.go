package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NormalizeName trims `s` and puts it in Unicode NFC form.
// Hangul names coming from macOS file systems or some spreadsheets are decomposed (NFD).
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// SameName reports whether two person names are equal once normalized.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
