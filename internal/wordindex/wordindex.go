// Package wordindex locates a phrase among OCR words and returns where it sits
// on the page.
package wordindex

import (
	"strings"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/ocr"
	"github.com/joseph-ayodele/docfields/internal/textsim"
)

// Tier is the search stage that produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierFuzzyWord
	TierFuzzyPhrase
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzyWord:
		return "fuzzy_word"
	case TierFuzzyPhrase:
		return "fuzzy_phrase"
	default:
		return "none"
	}
}

// Match is a located phrase.
type Match struct {
	BBox ocr.BBox
	Tier Tier
}

// FindPosition returns the box of target within words, or false.
func FindPosition(words []ocr.Word, target string) (ocr.BBox, bool) {
	m, ok := Locate(words, target)
	return m.BBox, ok
}

// Locate searches in three tiers, first hit wins:
// a word containing target, a single word similar to target, then a run of
// words each similar to the matching target word.
func Locate(words []ocr.Word, target string) (Match, bool) {
	target = strings.TrimSpace(target)
	if target == "" || len(words) == 0 {
		return Match{}, false
	}
	lt := strings.ToLower(target)

	for _, w := range words {
		if strings.Contains(strings.ToLower(w.Text), lt) {
			return Match{BBox: w.BBox, Tier: TierExact}, true
		}
	}

	for _, w := range words {
		if textsim.SimilarityFold(w.Text, lt) > constants.AnchorSimilarity {
			return Match{BBox: w.BBox, Tier: TierFuzzyWord}, true
		}
	}

	parts := strings.Fields(lt)
	n := len(parts)
	for i := 0; i+n <= len(words); i++ {
		if !windowMatches(words[i:i+n], parts) {
			continue
		}
		first, last := words[i].BBox, words[i+n-1].BBox
		// spans first to last horizontally, keeps the first word's line height
		return Match{
			BBox: ocr.BBox{X0: first.X0, Y0: first.Y0, X1: last.X1, Y1: first.Y1},
			Tier: TierFuzzyPhrase,
		}, true
	}
	return Match{}, false
}

func windowMatches(window []ocr.Word, parts []string) bool {
	for j, p := range parts {
		if textsim.SimilarityFold(window[j].Text, p) <= constants.AnchorSimilarity {
			return false
		}
	}
	return true
}
