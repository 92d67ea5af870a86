// Package authoring helps build schemas from sample documents: it derives
// regexes from highlighted values and reports word positions for templates.
package authoring

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/docfields/constants"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// InferRegex builds `before\s*(.+?)\s*after` from up to contextLen runes of
// text around the first occurrence of value. Empty context sides are left out.
// A contextLen <= 0 uses the default of 30.
func InferRegex(fullText, value string, contextLen int) (string, bool) {
	if value == "" {
		return "", false
	}
	idx := strings.Index(fullText, value)
	if idx < 0 {
		return "", false
	}
	if contextLen <= 0 {
		contextLen = constants.DefaultContextChars
	}

	before := lastRunes(fullText[:idx], contextLen)
	after := firstRunes(fullText[idx+len(value):], contextLen)

	beforeEsc := regexp.QuoteMeta(strings.TrimSpace(before))
	afterEsc := regexp.QuoteMeta(strings.TrimSpace(after))

	var b strings.Builder
	if beforeEsc != "" {
		b.WriteString(beforeEsc)
		b.WriteString(`\s*`)
	}
	b.WriteString(`(.+?)`)
	if afterEsc != "" {
		b.WriteString(`\s*`)
		b.WriteString(afterEsc)
	}
	return b.String(), true
}

// LiteralRegex escapes value and lets any whitespace run match \s+.
func LiteralRegex(value string) string {
	return reWhitespace.ReplaceAllString(regexp.QuoteMeta(strings.TrimSpace(value)), `\s+`)
}

func lastRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := len(s)
	for ; n > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for ; n > 0; n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
