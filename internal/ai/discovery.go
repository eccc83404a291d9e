package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Discovered is one opportunity suggested by the model. The fields mirror
// the keys the ingest extractor understands.
type Discovered struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Agency         string `json:"agency"`
	Location       string `json:"location"`
	EstimatedValue string `json:"estimated_value"`
	DueDate        string `json:"due_date"`
	URL            string `json:"url"`
	Category       string `json:"category"`
}

type discoveryResponse struct {
	Opportunities []Discovered `json:"opportunities"`
}

// Discover asks the model for current opportunities matching keywords.
// Categories outside allowed are dropped rather than trusted.
func Discover(ctx context.Context, gen Generator, keywords []string, limit int, allowed []string) ([]Discovered, error) {
	if limit <= 0 {
		limit = 10
	}
	prompt := fmt.Sprintf(`You are a government procurement researcher. List up to %d currently open public-sector contracting or grant opportunities related to: %s.

Return a JSON object with this format:
{
  "opportunities": [
    {"title": "", "description": "", "agency": "", "location": "", "estimated_value": "", "due_date": "YYYY-MM-DD", "url": "", "category": ""}
  ]
}

Rules:
1. Only include opportunities you have a source URL for.
2. category must be one of: %s. Leave it empty otherwise.
3. Use empty strings for unknown fields. Do not invent values.
4. RESPOND ONLY WITH JSON.`, limit, strings.Join(keywords, ", "), strings.Join(allowed, ", "))

	resp, err := gen.GenerateCompletion(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var parsed discoveryResponse
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse discovery json: %w", err)
	}

	out := make([]Discovered, 0, len(parsed.Opportunities))
	for _, d := range parsed.Opportunities {
		if strings.TrimSpace(d.Title) == "" {
			continue
		}
		d.Category = canonical(d.Category, allowed)
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func canonical(tag string, allowed []string) string {
	tag = strings.TrimSpace(tag)
	for _, a := range allowed {
		if strings.EqualFold(a, tag) {
			return a
		}
	}
	return ""
}
