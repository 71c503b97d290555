package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents returns s without combining marks ("Ñandú" -> "Nandu")
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FoldName produces the natural key form of a free-text name:
// accents removed, lower case, inner whitespace collapsed.
func FoldName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(stripAccents(s))), " ")
}

// FoldLabel reduces a field label to lower-case ASCII letters and digits only,
// so "Hora de Inicio:" and "hora_inicio" compare equal.
func FoldLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(stripAccents(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
