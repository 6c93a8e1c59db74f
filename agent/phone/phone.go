// Package phone normalizes Brazilian phone numbers to the canonical key
// format used by every store: "55" followed by up to 11 national digits.
package phone

import "strings"

// Normalize strips formatting, drops a leading 55 country code, keeps the
// last 11 digits and re-prefixes 55. Every lookup and write must go through
// this before touching a store.
func Normalize(raw string) string {
	cleaned := Digits(raw)
	if strings.HasPrefix(cleaned, "55") {
		cleaned = cleaned[2:]
	}
	if len(cleaned) > 11 {
		cleaned = cleaned[len(cleaned)-11:]
	}
	return "55" + cleaned
}

// Digits returns only the decimal digits of raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
