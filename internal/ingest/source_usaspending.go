package ingest

import (
	"context"
	"fmt"
	"strings"
)

var usaSpendingFields = []string{
	"Award ID", "Recipient Name", "Award Amount", "Description", "Awarding Agency",
	"Awarding Sub Agency", "Start Date", "End Date", "Place of Performance State Code",
	"generated_internal_id",
}

// USASpendingFetcher reads recent contract awards from spending_by_award.
type USASpendingFetcher struct {
	clients *clientPool
	Now     Clock
}

type usaSpendingRequest struct {
	Filters struct {
		AwardTypeCodes []string            `json:"award_type_codes"`
		TimePeriod     []map[string]string `json:"time_period"`
		Keywords       []string            `json:"keywords,omitempty"`
	} `json:"filters"`
	Fields []string `json:"fields"`
	Limit  int      `json:"limit"`
	Page   int      `json:"page"`
	Sort   string   `json:"sort"`
	Order  string   `json:"order"`
}

type usaSpendingResponse struct {
	Results      []RawRecord `json:"results"`
	PageMetadata struct {
		HasNext bool `json:"hasNext"`
	} `json:"page_metadata"`
}

func (f *USASpendingFetcher) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	client := f.clients.get(src)
	daysBack := src.Query.DaysBack
	if daysBack <= 0 {
		daysBack = 30
	}
	now := f.Now()

	var req usaSpendingRequest
	req.Filters.AwardTypeCodes = []string{"A", "B", "C", "D"}
	req.Filters.TimePeriod = []map[string]string{{
		"start_date": now.AddDate(0, 0, -daysBack).Format("2006-01-02"),
		"end_date":   now.Format("2006-01-02"),
	}}
	req.Filters.Keywords = src.Query.Keywords
	req.Fields = usaSpendingFields
	req.Limit = src.Query.limit(50)
	req.Sort = "Award Amount"
	req.Order = "desc"

	endpoint := strings.TrimRight(src.BaseURL, "/") + "/api/v2/search/spending_by_award/"

	var out []RawRecord
	for page := 1; page <= src.Query.pages(); page++ {
		req.Page = page
		var resp usaSpendingResponse
		if err := client.PostJSON(ctx, endpoint, req, &resp); err != nil {
			return nil, fmt.Errorf("usaspending search: %w", err)
		}
		for _, rec := range resp.Results {
			if id := stringify(rec["generated_internal_id"]); id != "" {
				rec["url"] = "https://www.usaspending.gov/award/" + id
			}
			if recipient := stringify(rec["Recipient Name"]); recipient != "" {
				rec["contact_info"] = "Awarded to " + recipient
			}
			out = append(out, rec)
		}
		if !resp.PageMetadata.HasNext {
			break
		}
	}
	return out, nil
}
