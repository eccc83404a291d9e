package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type datePattern struct {
	re               *regexp.Regexp
	year, month, day int
}

// Ordered fallbacks tried after the general parser gives up.
var fallbackPatterns = []datePattern{
	{re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`), year: 1, month: 2, day: 3},
	{re: regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`), year: 3, month: 1, day: 2},
	{re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), year: 3, month: 1, day: 2},
	{re: regexp.MustCompile(`\b(\d{2})-(\d{2})-(\d{4})\b`), year: 3, month: 2, day: 1},
}

var monthNameRegex = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)

var labelPrefixes = []string{
	"closing date:", "deadline:", "due date:", "due:", "response date:",
	"posted date:", "posted:", "publication date:", "open:", "expires:", "ends:",
}

// ParseDate reads a calendar date out of freeform text. The result is
// midnight UTC of that date. It never panics.
func ParseDate(text string) (d time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			d, ok = time.Time{}, false
		}
	}()

	s := cleanDateString(text)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return DateOnly(t), true
	}

	for _, p := range fallbackPatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if t, ok := buildDate(m[p.year], m[p.month], m[p.day]); ok {
			return t, true
		}
	}

	if m := monthNameRegex.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("Jan 2 2006", titleMonth(m[1])+" "+m[2]+" "+m[3]); err == nil {
			return DateOnly(t), true
		}
	}

	return time.Time{}, false
}

// DateOnly truncates t to its calendar date at midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow; reject dates that rolled into another month
	if t.Month() != time.Month(m) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func titleMonth(s string) string {
	s = strings.ToLower(s)
	if len(s) > 3 {
		s = s[:3]
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func cleanDateString(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range labelPrefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
