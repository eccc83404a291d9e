package ingest

import (
	"strings"
	"testing"
	"time"
)

func newTestExtractor(overrides map[string][]string) *Extractor {
	return NewExtractor(ExtractorConfig{Overrides: overrides, Now: fixedClock})
}

func TestExtractor_Title(t *testing.T) {
	e := newTestExtractor(nil)
	tests := []struct {
		name   string
		rec    RawRecord
		want   string
		wantOK bool
	}{
		{"first candidate", RawRecord{"title": "Cloud Migration Services"}, "Cloud Migration Services", true},
		{"short title falls through", RawRecord{"title": "IT", "name": "Enterprise IT Support Contract"}, "Enterprise IT Support Contract", true},
		{"exactly ten chars rejected", RawRecord{"title": "0123456789"}, PlaceholderTitle, false},
		{"html stripped", RawRecord{"title": "<b>Roof Replacement</b> &amp; Repair"}, "Roof Replacement & Repair", true},
		{"whitespace collapsed", RawRecord{"subject": "  Bridge   Inspection\n Services "}, "Bridge Inspection Services", true},
		{"case-insensitive key", RawRecord{"Title": "Fleet Maintenance Services"}, "Fleet Maintenance Services", true},
		{"nothing usable", RawRecord{"foo": "bar"}, PlaceholderTitle, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Title(tt.rec)
			if got.Value != tt.want || got.OK != tt.wantOK {
				t.Fatalf("Title = %q (ok=%v), want %q (ok=%v)", got.Value, got.OK, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractor_TitleTruncated(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := newTestExtractor(nil).Title(RawRecord{"title": long})
	if n := len([]rune(got.Value)); n > titleMaxLen {
		t.Fatalf("title has %d runes, want <= %d", n, titleMaxLen)
	}
	if !strings.HasSuffix(got.Value, "...") {
		t.Errorf("truncated title %q has no ellipsis", got.Value)
	}
}

func TestExtractor_Description(t *testing.T) {
	e := newTestExtractor(nil)

	short := e.Description(RawRecord{"description": "Too short", "summary": "A longer summary of the requested services."})
	if short.Key != "summary" {
		t.Errorf("key = %q, want summary", short.Key)
	}

	html := e.Description(RawRecord{"description": "<p>Scope of work:</p><ul><li>Install fiber</li><li>Test links</li></ul>"})
	if strings.Contains(html.Value, "<") || !strings.Contains(html.Value, "Install fiber") {
		t.Errorf("html description = %q", html.Value)
	}

	long := e.Description(RawRecord{"description": strings.Repeat("x", 3000)})
	if n := len([]rune(long.Value)); n != descriptionMaxLen {
		t.Errorf("description has %d runes, want %d", n, descriptionMaxLen)
	}

	none := e.Description(RawRecord{})
	if none.OK || none.Value != "" {
		t.Errorf("missing description = %+v, want empty", none)
	}
}

func TestExtractor_AgencyFallsBackToSourceName(t *testing.T) {
	e := newTestExtractor(nil)
	src := SourceConfig{Name: "Grants.gov"}

	if got := e.Agency(RawRecord{"agency": "Department of Energy"}, src); got.Value != "Department of Energy" {
		t.Errorf("agency = %q", got.Value)
	}
	if got := e.Agency(RawRecord{}, src); got.Value != "Grants.gov" || got.OK {
		t.Errorf("fallback agency = %+v, want source name", got)
	}
}

func TestExtractor_Value(t *testing.T) {
	e := newTestExtractor(nil)
	tests := []struct {
		name   string
		rec    RawRecord
		want   float64
		wantOK bool
	}{
		{"json number", RawRecord{"award_amount": 125000.0}, 125000, true},
		{"currency text", RawRecord{"estimated_value": "$1.2 million"}, 1_200_000, true},
		{"unparseable skips to next key", RawRecord{"estimated_value": "TBD", "budget": "50k"}, 50_000, true},
		{"zero is not a value", RawRecord{"amount": 0.0}, 0, false},
		{"nested path", RawRecord{"award": map[string]any{"amount": "750,000"}}, 750_000, true},
		{"missing", RawRecord{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Value(tt.rec)
			if got.Value != tt.want || got.OK != tt.wantOK {
				t.Fatalf("Value = %v (ok=%v), want %v (ok=%v)", got.Value, got.OK, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractor_Dates(t *testing.T) {
	e := newTestExtractor(nil)

	due := e.DueDate(RawRecord{"responseDeadLine": "2026-03-15T17:00:00-05:00"})
	if !due.OK || due.Value.Format("2006-01-02") != "2026-03-15" {
		t.Errorf("due = %+v, want 2026-03-15", due)
	}

	bad := e.DueDate(RawRecord{"due_date": "whenever"})
	if bad.OK {
		t.Errorf("unparseable due date accepted: %+v", bad)
	}

	posted := e.PostedDate(RawRecord{})
	if posted.OK || posted.Value.Format("2006-01-02") != "2026-02-12" {
		t.Errorf("defaulted posted = %+v, want today with ok=false", posted)
	}

	explicit := e.PostedDate(RawRecord{"openDate": "01/20/2026"})
	if !explicit.OK || explicit.Value.Format("2006-01-02") != "2026-01-20" {
		t.Errorf("posted = %+v, want 2026-01-20", explicit)
	}
}

func TestExtractor_PostedDatePolicyNone(t *testing.T) {
	e := NewExtractor(ExtractorConfig{PostedDatePolicy: PostedDateNone, Now: fixedClock})
	if got := e.PostedDate(RawRecord{}); !got.Value.IsZero() {
		t.Fatalf("posted = %v, want zero under policy none", got.Value)
	}
}

func TestExtractor_TodayUsesTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	late := func() time.Time { return time.Date(2026, 2, 12, 20, 0, 0, 0, time.UTC) }
	e := NewExtractor(ExtractorConfig{Location: tokyo, Now: late})
	if got := e.Today().Format("2006-01-02"); got != "2026-02-13" {
		t.Fatalf("today = %s, want 2026-02-13 in Tokyo", got)
	}
}

func TestExtractor_Overrides(t *testing.T) {
	e := newTestExtractor(map[string][]string{FieldTitle: {"Description"}, FieldExternalID: {"Award ID"}})
	rec := RawRecord{
		"id":          "internal-1",
		"Award ID":    "W91-24-C-0001",
		"Description": "Base operations support services",
	}
	if got := e.Title(rec); got.Value != "Base operations support services" {
		t.Errorf("title = %q", got.Value)
	}
	if got := e.ExternalID(rec); got.Value != "W91-24-C-0001" {
		t.Errorf("external id = %q, want override key first", got.Value)
	}
}

func TestExtractor_ContactEmailAndURL(t *testing.T) {
	e := newTestExtractor(nil)
	rec := RawRecord{
		"pointOfContact": []any{map[string]any{"fullName": "Pat Lee", "email": "Pat.Lee@GSA.gov"}},
		"uiLink":         "https://sam.gov/opp/abc/view",
	}
	if got := e.ContactEmail(rec); got.Value != "pat.lee@gsa.gov" {
		t.Errorf("email = %q", got.Value)
	}
	if got := e.Contact(rec); got.Value != "Pat Lee" {
		t.Errorf("contact = %q", got.Value)
	}
	if got := e.SourceURL(rec); got.Value != "https://sam.gov/opp/abc/view" {
		t.Errorf("url = %q", got.Value)
	}
	if got := e.SourceURL(RawRecord{"url": "javascript:alert(1)"}); got.OK {
		t.Errorf("non-http url accepted: %q", got.Value)
	}
}
