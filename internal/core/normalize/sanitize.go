package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// unwanted reports runes that must not reach storage: NUL, ASCII controls other
// than tab and line breaks, DEL and the C1 block
func unwanted(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20, r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	}
	return false
}

var stripControls = runes.Remove(runes.Predicate(unwanted))

// Sanitize drops invalid UTF-8 and control characters. Clean input is returned as is
func Sanitize(s string) string {
	if clean(s) {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	out, _, err := transform.String(stripControls, s)
	if err != nil {
		return s
	}
	return out
}

func clean(s string) bool {
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			if b == 0x7F || (b < 0x20 && b != '\n' && b != '\r' && b != '\t') {
				return false
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if unwanted(r) {
			return false
		}
		i += size
	}
	return true
}
