package places

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalize lowercases s, strips diacritics and drops everything that is not
// a letter or digit.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// overlapRatio is the share of the query's characters that also appear in
// candidate, counted as a multiset. A short query fully covered by a long
// candidate scores 1.
func overlapRatio(query, candidate string) float64 {
	rq := []rune(query)
	if len(rq) == 0 {
		return 0
	}

	counts := make(map[rune]int, len(candidate))
	for _, r := range candidate {
		counts[r]++
	}
	shared := 0
	for _, r := range rq {
		if counts[r] > 0 {
			counts[r]--
			shared++
		}
	}
	return float64(shared) / float64(len(rq))
}
