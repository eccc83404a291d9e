package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const samDateLayout = "01/02/2006"

// SAMGovFetcher reads the SAM.gov opportunities v2 search API.
type SAMGovFetcher struct {
	clients *clientPool
	Now     Clock
}

type samSearchResponse struct {
	TotalRecords      int         `json:"totalRecords"`
	OpportunitiesData []RawRecord `json:"opportunitiesData"`
}

func (f *SAMGovFetcher) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	if !src.HasAPIKey() {
		return nil, fmt.Errorf("%s: %w", src.Name, ErrMissingAPIKey)
	}
	client := f.clients.get(src)

	daysBack := src.Query.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	now := f.Now()
	pageSize := src.Query.limit(100)

	var out []RawRecord
	for page := 0; page < src.Query.pages(); page++ {
		q := url.Values{}
		q.Set("api_key", src.APIKey)
		q.Set("postedFrom", now.AddDate(0, 0, -daysBack).Format(samDateLayout))
		q.Set("postedTo", now.Format(samDateLayout))
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(page*pageSize))
		if len(src.Query.NAICS) > 0 {
			q.Set("ncode", strings.Join(src.Query.NAICS, ","))
		}
		endpoint := strings.TrimRight(src.BaseURL, "/") + "/opportunities/v2/search?" + q.Encode()

		var resp samSearchResponse
		if err := client.GetJSON(ctx, endpoint, &resp); err != nil {
			return nil, fmt.Errorf("sam.gov search: %w", redactKey(err, src.APIKey))
		}
		for _, rec := range resp.OpportunitiesData {
			out = append(out, samRecord(rec))
		}
		if len(resp.OpportunitiesData) < pageSize || len(out) >= resp.TotalRecords {
			break
		}
	}
	return out, nil
}

// samRecord moves SAM's "description", which is a link to the notice text
// rather than the text itself, out of the description candidates.
func samRecord(rec RawRecord) RawRecord {
	if d, ok := rec["description"]; ok {
		rec["description_url"] = d
		delete(rec, "description")
	}
	if pop, ok := rec["placeOfPerformance"].(map[string]any); ok {
		city := stringify(lookupValue(pop, "city.name"))
		state := stringify(lookupValue(pop, "state.code"))
		if city != "" && state != "" {
			rec["location"] = city + ", " + state
		}
	}
	return rec
}

func lookupValue(m map[string]any, path string) any {
	v, _ := lookupPath(m, path)
	return v
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redactKey strips the api key from URLs echoed back in error text.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), err: err}
}
