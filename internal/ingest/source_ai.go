package ingest

import (
	"context"
	"fmt"

	"github.com/david/opportunity-radar/internal/ai"
	"github.com/david/opportunity-radar/internal/scoring"
)

// AIDiscoveryFetcher asks a language model for opportunities matching the
// source's keywords.
type AIDiscoveryFetcher struct {
	Generator ai.Generator
}

func (f *AIDiscoveryFetcher) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	if f.Generator == nil {
		return nil, fmt.Errorf("%s: no generator configured", src.Name)
	}
	allowed := make([]string, 0, len(scoring.DefaultCategories))
	for _, c := range scoring.DefaultCategories {
		allowed = append(allowed, c.Name)
	}

	found, err := ai.Discover(ctx, f.Generator, src.Query.Keywords, src.Query.limit(10), allowed)
	if err != nil {
		return nil, fmt.Errorf("ai discovery: %w", err)
	}

	out := make([]RawRecord, 0, len(found))
	for _, d := range found {
		out = append(out, RawRecord{
			"title":           d.Title,
			"description":     d.Description,
			"agency":          d.Agency,
			"location":        d.Location,
			"estimated_value": d.EstimatedValue,
			"due_date":        d.DueDate,
			"url":             d.URL,
			"category":        d.Category,
		})
	}
	return out, nil
}
