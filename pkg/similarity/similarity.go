// Package similarity scores how alike two product names are on a 0-100
// scale. The measure is a token-sort ratio: names are case-folded,
// punctuation is dropped, tokens are sorted and rejoined, and the two
// normalized strings are compared with an indel (insert/delete) distance.
// Sorting the tokens makes the score robust against word-order differences
// ("Coca-Cola Zero 2L" vs "2L Coca-Cola Zero").
package similarity

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"
)

// ErrEmptyName is returned when a name has no scorable tokens left after
// normalization. Callers are expected to skip the comparison, not abort.
var ErrEmptyName = errors.New("name has no scorable tokens")

// fillerWords are low-signal Spanish connectives stripped before scoring
// so that packaging phrasing does not dominate the comparison.
var fillerWords = map[string]bool{
	"de": true, "del": true, "la": true, "el": true, "los": true,
	"las": true, "y": true, "con": true, "sin": true, "al": true,
	"en": true, "para": true,
}

// TokenSortScorer implements the scorer contract used by the matching
// engine. The zero value is ready to use.
type TokenSortScorer struct{}

func NewTokenSortScorer() *TokenSortScorer {
	return &TokenSortScorer{}
}

// Score returns the token-sort similarity of a and b in [0, 100].
// Either name normalizing to nothing fails with ErrEmptyName.
func (s *TokenSortScorer) Score(a, b string) (int, error) {
	na := normalize(a)
	nb := normalize(b)

	if na == "" || nb == "" {
		return 0, ErrEmptyName
	}
	if na == nb {
		return 100, nil
	}

	return indelRatio(na, nb), nil
}

// normalize lowercases, strips punctuation, drops filler words and
// rejoins the remaining tokens in sorted order.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if !fillerWords[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		// Nothing but filler: fall back to the raw tokens so "De La"
		// still compares against itself instead of erroring out.
		kept = tokens
	}

	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// indelRatio is the normalized insert/delete similarity of two strings:
// 100 * (1 - distance / (len(a) + len(b))), where distance counts single
// rune insertions and deletions (no substitutions), rounded to the
// nearest integer.
func indelRatio(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	lcs := longestCommonSubsequence(ra, rb)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}

	distance := total - 2*lcs
	ratio := 100 * (1 - float64(distance)/float64(total))
	return int(math.Round(ratio))
}

func longestCommonSubsequence(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
