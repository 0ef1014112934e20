// Package text holds text helpers shared by extraction and packaging.
package text

import (
	"strings"
	"unicode"
)

// IsSpace reports whether r is collapsed by Normalize. In addition to
// Unicode white space this includes zero width space and zero width
// no-break space (BOM) which browsers leave in copied text.
func IsSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\u200B' || r == '\uFEFF'
}

// Normalize collapses every run of white space (ASCII, non-breaking, the
// typographic U+2000-U+200B range, line and paragraph separators, BOM) into a
// single ASCII space and trims both ends. Result is idempotent.
func Normalize(s string) string {
	var (
		b       strings.Builder
		pending bool
	)
	b.Grow(len(s))
	for _, r := range s {
		if IsSpace(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsBlank reports whether s has nothing left after normalization.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !IsSpace(r) }) < 0
}
