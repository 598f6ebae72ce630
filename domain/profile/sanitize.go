package profile

import (
	"strings"
	"unicode"
)

// SanitizeLabel converts a raw group label into an identifier safe for use as
// a model-matrix column name. Every rune outside [A-Za-z0-9._] maps to ".",
// and labels that cannot start an identifier (digit, dot-digit, empty) get an
// "X" prefix. The same sanitizer must be applied to group levels and to
// caller-supplied contrast endpoints, otherwise level lookups miss.
func SanitizeLabel(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('.')
		}
	}

	s := b.String()
	if s == "" {
		return "X"
	}
	if needsPrefix(s) {
		return "X" + s
	}
	return s
}

func needsPrefix(s string) bool {
	r := rune(s[0])
	if unicode.IsDigit(r) || r == '_' {
		return true
	}
	if r == '.' && len(s) > 1 && unicode.IsDigit(rune(s[1])) {
		return true
	}
	return false
}
