// Package normalize cleans scraped text before it is stored or compared.
//
// Text is applied to every string field the extractor produces:
//  1. strip control characters and invalid UTF-8 (Sanitize)
//  2. Unicode NFC composition
//  3. trim surrounding whitespace
//
// Handle is the comparison form of an account handle: NFKC, case and width
// folded, format characters removed and the leading @ dropped.
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// transformer chains are stateful, so each call takes its own from a pool
var handlePool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)), // ZWJ ZWNJ FEFF
			width.Fold,
		)
	},
}

// Text returns the stored form of a scraped string
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = Sanitize(s)
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return strings.TrimSpace(s)
}

// Handle returns the comparison form of a username. Two handles refer to the same
// account when their Handle forms are equal
func Handle(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	tr := handlePool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	handlePool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimLeft(strings.TrimSpace(out), "@")
}

// SameHandle reports whether a and b name the same account
func SameHandle(a, b string) bool {
	ha, hb := Handle(a), Handle(b)
	return ha != "" && ha == hb
}
