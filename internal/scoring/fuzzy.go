package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// tokenize lowercases s and splits it into words with edge punctuation trimmed.
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'`")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ratio is the normalised Levenshtein similarity of a and b in [0,100].
func ratio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 - d*100/longest
}

// partialRatio compares the keyword against every window of the same number
// of words in text and returns the best similarity.
func partialRatio(keyword string, words []string, threshold int) int {
	kw := strings.Fields(keyword)
	n := len(kw)
	if n == 0 || len(words) < n {
		return 0
	}
	needle := strings.Join(kw, " ")
	nl := utf8.RuneCountInString(needle)

	best := 0
	for i := 0; i+n <= len(words); i++ {
		window := strings.Join(words[i:i+n], " ")
		wl := utf8.RuneCountInString(window)
		// the length gap alone is a lower bound on the distance
		if gap := abs(wl - nl); gap*100 > (100-threshold)*max(wl, nl) {
			continue
		}
		if r := ratio(needle, window); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// matchKeyword reports an exact or fuzzy hit of a lowercase keyword. Keywords
// shorter than four runes only match whole words.
func matchKeyword(text string, words []string, keyword string, threshold int) bool {
	if keyword == "" {
		return false
	}
	if utf8.RuneCountInString(keyword) < 4 {
		for _, w := range words {
			if w == keyword {
				return true
			}
		}
		return false
	}
	if strings.Contains(text, keyword) {
		return true
	}
	return partialRatio(keyword, words, threshold) >= threshold
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
