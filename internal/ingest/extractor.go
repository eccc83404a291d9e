package ingest

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/david/opportunity-radar/internal/normalize"
)

// PlaceholderTitle is used when no candidate key yields a usable title.
const PlaceholderTitle = "Scraped Opportunity"

// Logical fields understood by the extractor.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldAgency       = "agency"
	FieldValue        = "value"
	FieldDueDate      = "due_date"
	FieldPostedDate   = "posted_date"
	FieldExternalID   = "external_id"
	FieldSourceURL    = "source_url"
	FieldLocation     = "location"
	FieldContact      = "contact"
	FieldContactEmail = "contact_email"
	FieldCategory     = "category"
	FieldSetAside     = "set_aside"
	FieldStatus       = "status"
)

const (
	titleMinLen       = 10
	titleMaxLen       = 200
	descriptionMinLen = 20
	descriptionMaxLen = 1000
	// scoring reads up to this much; beyond it only the length penalty matters
	fullDescriptionMaxLen = 20000
)

// Rule lists candidate keys for one logical field, tried in order. A candidate
// is accepted when its cleaned text is longer than MinLen runes.
type Rule struct {
	Keys   []string
	MinLen int
	MaxLen int
}

var defaultRules = map[string]Rule{
	FieldTitle: {
		Keys:   []string{"title", "name", "subject", "opportunity_title", "solicitation_title", "opportunityTitle", "headline"},
		MinLen: titleMinLen,
		MaxLen: titleMaxLen,
	},
	FieldDescription: {
		Keys:   []string{"description", "summary", "synopsis", "synopsisDesc", "details", "body", "content", "abstract", "Description"},
		MinLen: descriptionMinLen,
		MaxLen: descriptionMaxLen,
	},
	FieldAgency: {
		Keys: []string{"agency", "agency_name", "agencyName", "department", "fullParentPathName", "organization", "office", "awarding_agency", "Awarding Agency", "buyer"},
	},
	FieldValue: {
		Keys: []string{"estimated_value", "estimatedValue", "award_amount", "Award Amount", "award.amount", "amount", "value", "award_ceiling", "awardCeiling", "budget", "funding", "contract_value"},
	},
	FieldDueDate: {
		Keys: []string{"due_date", "dueDate", "response_deadline", "responseDeadLine", "close_date", "closeDate", "closing_date", "deadline", "End Date", "archiveDate"},
	},
	FieldPostedDate: {
		Keys: []string{"posted_date", "postedDate", "open_date", "openDate", "publish_date", "published", "pubDate", "Start Date", "created"},
	},
	FieldExternalID: {
		Keys: []string{"external_id", "notice_id", "noticeId", "opportunity_id", "opportunityId", "id", "solicitation_number", "solicitationNumber", "generated_internal_id", "Award ID", "guid", "number"},
	},
	FieldSourceURL: {
		Keys: []string{"source_url", "url", "uiLink", "ui_link", "link", "href"},
	},
	FieldLocation: {
		Keys: []string{"location", "place_of_performance", "placeOfPerformance.state.code", "Place of Performance State Code", "state", "pop_state", "region"},
	},
	FieldContact: {
		Keys: []string{"contact_info", "contact", "point_of_contact", "pointOfContact.0.fullName", "contact_name"},
	},
	FieldContactEmail: {
		Keys: []string{"contact_email", "contactEmail", "email", "pointOfContact.0.email"},
	},
	FieldCategory: {
		Keys: []string{"category", "naics_code", "naicsCode", "naics", "classificationCode", "cfdaList", "categories", "type"},
	},
	FieldSetAside: {
		Keys: []string{"set_aside", "setAside", "typeOfSetAsideDescription", "typeOfSetAside", "set_aside_type"},
	},
	FieldStatus: {
		Keys: []string{"status", "oppStatus", "opp_status", "active"},
	},
}

// Field is the typed outcome of extracting one logical field. Key names the
// candidate that produced Value; OK is false when Value is a fallback.
type Field[T any] struct {
	Value T
	Key   string
	OK    bool
}

// PostedDatePolicy decides what a record without a posted date gets.
type PostedDatePolicy string

const (
	PostedDateToday PostedDatePolicy = "today"
	PostedDateNone  PostedDatePolicy = "none"
)

type ExtractorConfig struct {
	// Overrides are tried before the default candidates of the same field.
	Overrides        map[string][]string
	PostedDatePolicy PostedDatePolicy
	Location         *time.Location
	Now              Clock
}

// Extractor pulls logical fields out of heterogeneous raw records.
type Extractor struct {
	rules  map[string]Rule
	posted PostedDatePolicy
	loc    *time.Location
	now    Clock
}

func NewExtractor(cfg ExtractorConfig) *Extractor {
	rules := make(map[string]Rule, len(defaultRules))
	for name, r := range defaultRules {
		if extra := cfg.Overrides[name]; len(extra) > 0 {
			keys := make([]string, 0, len(extra)+len(r.Keys))
			keys = append(keys, extra...)
			r.Keys = mergeUniqueFold(keys, r.Keys)
		}
		rules[name] = r
	}

	e := &Extractor{
		rules:  rules,
		posted: cfg.PostedDatePolicy,
		loc:    cfg.Location,
		now:    cfg.Now,
	}
	if e.posted == "" {
		e.posted = PostedDateToday
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

var emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

func (e *Extractor) text(rec RawRecord, field string, clean func(string) string) (string, string, bool) {
	rule := e.rules[field]
	for _, key := range rule.Keys {
		v, ok := lookupPath(rec, key)
		if !ok {
			continue
		}
		s := clean(sanitizeUTF8(stringify(v)))
		if utf8.RuneCountInString(s) > rule.MinLen {
			return s, key, true
		}
	}
	return "", "", false
}

func (e *Extractor) inline(rec RawRecord, field string) Field[string] {
	s, key, ok := e.text(rec, field, cleanInline)
	if ok {
		s = TruncateText(s, e.rules[field].MaxLen)
	}
	return Field[string]{Value: s, Key: key, OK: ok}
}

// Title returns the first candidate longer than ten characters, or the
// placeholder with OK=false.
func (e *Extractor) Title(rec RawRecord) Field[string] {
	f := e.inline(rec, FieldTitle)
	if !f.OK {
		f.Value = PlaceholderTitle
	}
	return f
}

// Description returns the cleaned description truncated to its bound.
func (e *Extractor) Description(rec RawRecord) Field[string] {
	f := e.fullDescription(rec)
	f.Value = TruncateText(f.Value, descriptionMaxLen)
	return f
}

func (e *Extractor) fullDescription(rec RawRecord) Field[string] {
	s, key, ok := e.text(rec, FieldDescription, cleanBlock)
	return Field[string]{Value: s, Key: key, OK: ok}
}

// Agency falls back to the configured source name.
func (e *Extractor) Agency(rec RawRecord, src SourceConfig) Field[string] {
	f := e.inline(rec, FieldAgency)
	if !f.OK {
		f.Value = src.Name
	}
	return f
}

func (e *Extractor) Value(rec RawRecord) Field[float64] {
	for _, key := range e.rules[FieldValue].Keys {
		v, ok := lookupPath(rec, key)
		if !ok {
			continue
		}
		var amount float64
		switch x := v.(type) {
		case float64:
			amount = x
		case int:
			amount = float64(x)
		case int64:
			amount = float64(x)
		default:
			parsed, ok := normalize.ParseCurrency(stringify(v))
			if !ok {
				continue
			}
			amount = parsed
		}
		if amount > 0 {
			return Field[float64]{Value: amount, Key: key, OK: true}
		}
	}
	return Field[float64]{}
}

func (e *Extractor) date(rec RawRecord, field string) Field[time.Time] {
	for _, key := range e.rules[field].Keys {
		v, ok := lookupPath(rec, key)
		if !ok {
			continue
		}
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			return Field[time.Time]{Value: normalize.DateOnly(t.In(e.loc)), Key: key, OK: true}
		}
		if d, ok := normalize.ParseDate(stringify(v)); ok {
			return Field[time.Time]{Value: d, Key: key, OK: true}
		}
	}
	return Field[time.Time]{}
}

func (e *Extractor) DueDate(rec RawRecord) Field[time.Time] {
	return e.date(rec, FieldDueDate)
}

// PostedDate defaults to today in the processing timezone under
// PostedDateToday. OK stays false for the default.
func (e *Extractor) PostedDate(rec RawRecord) Field[time.Time] {
	f := e.date(rec, FieldPostedDate)
	if !f.OK && e.posted == PostedDateToday {
		f.Value = e.Today()
	}
	return f
}

// Today is the current calendar date in the processing timezone.
func (e *Extractor) Today() time.Time {
	now := e.now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *Extractor) ExternalID(rec RawRecord) Field[string] {
	return e.inline(rec, FieldExternalID)
}

func (e *Extractor) SourceURL(rec RawRecord) Field[string] {
	f := e.inline(rec, FieldSourceURL)
	if f.OK && !strings.HasPrefix(f.Value, "http://") && !strings.HasPrefix(f.Value, "https://") {
		return Field[string]{}
	}
	return f
}

func (e *Extractor) Location(rec RawRecord) Field[string] {
	return e.inline(rec, FieldLocation)
}

func (e *Extractor) Contact(rec RawRecord) Field[string] {
	return e.inline(rec, FieldContact)
}

// ContactEmail prefers an explicit email key, then the first address found
// in the contact text.
func (e *Extractor) ContactEmail(rec RawRecord) Field[string] {
	for _, key := range e.rules[FieldContactEmail].Keys {
		v, ok := lookupPath(rec, key)
		if !ok {
			continue
		}
		if m := emailRegex.FindString(stringify(v)); m != "" {
			return Field[string]{Value: strings.ToLower(m), Key: key, OK: true}
		}
	}
	if c := e.Contact(rec); c.OK {
		if m := emailRegex.FindString(c.Value); m != "" {
			return Field[string]{Value: strings.ToLower(m), Key: c.Key, OK: true}
		}
	}
	return Field[string]{}
}

func (e *Extractor) Category(rec RawRecord) Field[string] {
	return e.inline(rec, FieldCategory)
}

func (e *Extractor) SetAside(rec RawRecord) Field[string] {
	return e.inline(rec, FieldSetAside)
}

func (e *Extractor) Status(rec RawRecord) Field[string] {
	return e.inline(rec, FieldStatus)
}
