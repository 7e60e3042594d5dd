// Package score turns an expected/produced transcript pair into error
// rates: a character error rate from edit distance and an optional
// semantic error rate from fact matching.
package score

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Normalize collapses runs of whitespace to single spaces and trims the
// ends. Case and punctuation are preserved; the comparison is strict.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLoose additionally lowercases and strips punctuation. Used
// only for the word-level diff in reports, never for the headline CER.
func NormalizeLoose(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return Normalize(b.String())
}

// CER is the character error rate in percent: the Levenshtein distance
// between the normalized texts divided by the expected length. The
// denominator is always the expected text, so inserting garbage into a
// short reference can push CER past 100.
func CER(expected, got string) float64 {
	ne, ng := Normalize(expected), Normalize(got)
	if ne == "" {
		if ng == "" {
			return 0
		}
		return 100
	}
	dist := matchr.Levenshtein(ne, ng)
	return float64(dist) / float64(utf8.RuneCountInString(ne)) * 100
}

// WER is the word error rate in percent: Levenshtein distance over
// whitespace-separated tokens of the normalized texts, divided by the
// expected token count.
func WER(expected, got string) float64 {
	we, wg := strings.Fields(expected), strings.Fields(got)
	if len(we) == 0 {
		if len(wg) == 0 {
			return 0
		}
		return 100
	}
	return float64(wordDistance(we, wg)) / float64(len(we)) * 100
}

// wordDistance is a token-level Levenshtein. Two rows only; transcripts
// are short enough that allocation never matters here.
func wordDistance(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
