// Package textsim scores how close two strings are, for matching OCR output
// that contains recognition errors.
package textsim

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Distance is the case-sensitive edit distance between a and b, counting
// single-rune inserts, deletes and substitutions at cost 1.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Similarity returns (maxLen - Distance) / maxLen in [0,1], where maxLen is
// the rune length of the longer string. Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return float64(longest-Distance(a, b)) / float64(longest)
}

// SimilarityFold is Similarity over lowercased inputs.
func SimilarityFold(a, b string) float64 {
	return Similarity(strings.ToLower(a), strings.ToLower(b))
}
