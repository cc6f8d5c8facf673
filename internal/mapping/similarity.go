package mapping

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) on lowercased input.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1.0
	}

	return float64(longer-levenshtein.ComputeDistance(a, b)) / float64(longer)
}
