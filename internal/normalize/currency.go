// Package normalize turns freeform currency and date strings into canonical values.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRegex = regexp.MustCompile(`\d[\d.,]*`)
	// single-letter magnitudes only count when attached to a number ("$2.5M", "10 k")
	suffixRegex = regexp.MustCompile(`(?i)\d\s*(bn|mm|b|m|k)\b`)
)

var magnitudeWords = []struct {
	word   string
	factor float64
}{
	{"billion", 1e9},
	{"million", 1e6},
	{"thousand", 1e3},
}

// ParseCurrency extracts the first amount in text and applies any magnitude
// multiplier found in the original text. It reports false when no number can
// be read.
func ParseCurrency(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	match := numberRegex.FindString(text)
	match = strings.TrimRight(match, ".,")
	if match == "" {
		return 0, false
	}

	val, err := strconv.ParseFloat(resolveSeparators(match), 64)
	if err != nil {
		return 0, false
	}

	return val * magnitude(text), true
}

// resolveSeparators decides whether commas and dots are decimal or thousands
// separators and returns a string strconv can read.
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if len(s)-lastComma-1 <= 2 {
			// "1,5" or "1,234,56": the last comma is the decimal point
			head := strings.ReplaceAll(s[:lastComma], ",", "")
			return head + "." + s[lastComma+1:]
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func magnitude(original string) float64 {
	lower := strings.ToLower(original)
	for _, m := range magnitudeWords {
		if strings.Contains(lower, m.word) {
			return m.factor
		}
	}

	if m := suffixRegex.FindStringSubmatch(original); m != nil {
		switch strings.ToLower(m[1]) {
		case "b", "bn":
			return 1e9
		case "m", "mm":
			return 1e6
		case "k":
			return 1e3
		}
	}
	return 1
}
