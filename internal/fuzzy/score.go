// Package fuzzy scores approximate string matches on a 0-100 scale.
// The scorer sits behind a narrow interface so the search engine's
// pagination logic never depends on a particular similarity algorithm.
package fuzzy

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Scorer rates how well candidate matches query. Higher is better;
// 100 means an exact (case-insensitive) match.
type Scorer interface {
	Score(query, candidate string) float64
}

// WeightedRatio is a WRatio-style scorer: the maximum of the full
// normalized edit-distance ratio and a damped best-substring partial
// ratio. Symmetric inputs score identically.
type WeightedRatio struct{}

// partialWeight damps substring matches so exact full matches always
// outrank them.
const partialWeight = 0.9

func (WeightedRatio) Score(query, candidate string) float64 {
	q := strings.ToUpper(strings.TrimSpace(query))
	c := strings.ToUpper(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 100
	}

	full := ratio(q, c)
	partial := partialRatio(q, c) * partialWeight
	if partial > full {
		return partial
	}
	return full
}

// ratio is the normalized Levenshtein similarity: 100 * (1 - dist/maxLen).
func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

// partialRatio slides a window the length of the shorter string over
// the longer one and returns the best window ratio. A direct substring
// hit short-circuits to 100.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if strings.Contains(string(long), string(short)) {
		return 100
	}

	best := 0.0
	window := len(short)
	for i := 0; i+window <= len(long); i++ {
		r := ratio(string(short), string(long[i:i+window]))
		if r > best {
			best = r
		}
	}
	// Also compare against the whole longer string in case the window
	// segmentation splits a near-match.
	if r := ratio(string(short), string(long)); r > best {
		best = r
	}
	return best
}
