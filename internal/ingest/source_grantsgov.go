package ingest

import (
	"context"
	"fmt"
	"strings"
)

// GrantsGovFetcher reads the Grants.gov search2 API.
type GrantsGovFetcher struct {
	clients *clientPool
}

// GrantsGovSearchRequest matches the Grants.gov search2 API schema.
type GrantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

// GrantsGovResponse represents the search2 API response (wrapped in "data").
type GrantsGovResponse struct {
	Data struct {
		HitCount    int               `json:"hitCount"`
		StartRecord int               `json:"startRecord"`
		OppHits     []GrantsGovRecord `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

type GrantsGovRecord struct {
	ID         string   `json:"id"`
	Number     string   `json:"number"`
	Title      string   `json:"title"`
	Agency     string   `json:"agency"`
	AgencyCode string   `json:"agencyCode"`
	OpenDate   string   `json:"openDate"`
	CloseDate  string   `json:"closeDate"`
	OppStatus  string   `json:"oppStatus"`
	DocType    string   `json:"docType"`
	CFDAList   []string `json:"cfdaList"`
}

type grantsGovDetail struct {
	Data struct {
		Synopsis struct {
			SynopsisDesc  string `json:"synopsisDesc"`
			AwardCeiling  string `json:"awardCeiling"`
			AgencyContact string `json:"agencyContactEmail"`
		} `json:"synopsis"`
	} `json:"data"`
}

// Fetch runs one search per configured keyword and merges hits by id.
func (f *GrantsGovFetcher) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	client := f.clients.get(src)
	keywords := src.Query.Keywords
	if len(keywords) == 0 {
		keywords = []string{""}
	}
	rows := src.Query.limit(25)

	seen := make(map[string]bool)
	var out []RawRecord
	for _, kw := range keywords {
		for page := 0; page < src.Query.pages(); page++ {
			req := GrantsGovSearchRequest{
				Keyword:        kw,
				OppStatuses:    "forecasted|posted",
				SortBy:         "openDate|desc",
				Rows:           rows,
				StartRecordNum: page * rows,
			}
			var resp GrantsGovResponse
			if err := client.PostJSON(ctx, src.BaseURL, req, &resp); err != nil {
				return nil, fmt.Errorf("grants.gov search %q: %w", kw, err)
			}
			if resp.ErrorCode != 0 {
				return nil, fmt.Errorf("grants.gov search %q: API error %d: %s", kw, resp.ErrorCode, resp.Msg)
			}

			for _, hit := range resp.Data.OppHits {
				if hit.ID == "" || seen[hit.ID] {
					continue
				}
				seen[hit.ID] = true
				rec := grantsGovRecord(hit)
				if src.Query.Details {
					f.enrich(ctx, client, src, rec, hit.ID)
				}
				out = append(out, rec)
			}
			if len(resp.Data.OppHits) < rows {
				break
			}
		}
	}
	return out, nil
}

func grantsGovRecord(hit GrantsGovRecord) RawRecord {
	cfda := make([]any, 0, len(hit.CFDAList))
	for _, c := range hit.CFDAList {
		cfda = append(cfda, c)
	}
	summary := "Federal grant from " + hit.Agency
	if len(hit.CFDAList) > 0 {
		summary += ". CFDA: " + strings.Join(hit.CFDAList, ", ")
	}
	return RawRecord{
		"id":         hit.ID,
		"number":     hit.Number,
		"title":      hit.Title,
		"agency":     hit.Agency,
		"agencyCode": hit.AgencyCode,
		"openDate":   hit.OpenDate,
		"closeDate":  hit.CloseDate,
		"oppStatus":  hit.OppStatus,
		"docType":    hit.DocType,
		"cfdaList":   cfda,
		"summary":    summary,
		"url":        "https://www.grants.gov/search-results-detail/" + hit.ID,
	}
}

// enrich adds the synopsis when the detail call succeeds. Failures leave the
// search hit as is.
func (f *GrantsGovFetcher) enrich(ctx context.Context, client *HTTPClient, src SourceConfig, rec RawRecord, id string) {
	detailURL := strings.Replace(src.BaseURL, "search2", "fetchOpportunity", 1)
	var detail grantsGovDetail
	if err := client.PostJSON(ctx, detailURL, map[string]string{"opportunityId": id}, &detail); err != nil {
		return
	}
	syn := detail.Data.Synopsis
	if syn.SynopsisDesc != "" {
		rec["description"] = syn.SynopsisDesc
	}
	if syn.AwardCeiling != "" {
		rec["awardCeiling"] = syn.AwardCeiling
	}
	if syn.AgencyContact != "" {
		rec["contact_email"] = syn.AgencyContact
	}
}
