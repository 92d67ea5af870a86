package extract

import (
	"regexp/syntax"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/docfields/internal/textsim"
)

// minLiteralRunes is the shortest literal worth a fuzzy search.
const minLiteralRunes = 3

// LiteralTarget returns the longest literal run inside pattern, or "" when the
// pattern has none of at least three runes.
func LiteralTarget(pattern string) string {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return ""
	}
	best := ""
	var walk func(*syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		if r.Op == syntax.OpLiteral {
			if s := strings.TrimSpace(string(r.Rune)); utf8.RuneCountInString(s) > utf8.RuneCountInString(best) {
				best = s
			}
			return
		}
		for _, sub := range r.Sub {
			walk(sub)
		}
	}
	walk(re.Simplify())
	if utf8.RuneCountInString(best) < minLiteralRunes {
		return ""
	}
	return best
}

// FindSimilarText slides a window of len(target words) over the words of text
// and returns the first window whose average case-insensitive similarity to
// target reaches threshold.
func FindSimilarText(text, target string, threshold float64) (string, bool) {
	words := strings.Fields(text)
	targetWords := strings.Fields(target)
	n := len(targetWords)
	if n == 0 {
		return "", false
	}
	for i := 0; i+n <= len(words); i++ {
		var score float64
		for j, tw := range targetWords {
			score += textsim.SimilarityFold(words[i+j], tw)
		}
		if score/float64(n) >= threshold {
			return strings.Join(words[i:i+n], " "), true
		}
	}
	return "", false
}
