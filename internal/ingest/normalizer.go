package ingest

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// TruncateText cuts a string to maxLen runes, appending an ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen > 3 {
		return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
	}
	return string(runes[:maxLen])
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeSpace(s)
	}
	return normalizeSpace(doc.Text())
}

// cleanInline strips every tag and entity from short single-line values.
func cleanInline(s string) string {
	if strings.ContainsAny(s, "<&") {
		s = html.UnescapeString(strictPolicy.Sanitize(s))
	}
	return normalizeSpace(s)
}

// cleanBlock turns a possibly HTML description into plain text.
func cleanBlock(s string) string {
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		return HTMLToText(s)
	}
	return normalizeSpace(html.UnescapeString(s))
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
