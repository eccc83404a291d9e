package scoring

import (
	"fmt"
	"strconv"
	"strings"
)

// Adjustment is one additive factor applied to a score.
type Adjustment struct {
	Reason string  `json:"reason"`
	Delta  float64 `json:"delta"`
}

type ComponentExplanation struct {
	Name        string       `json:"name"`
	Score       float64      `json:"score"`
	Weight      float64      `json:"weight"`
	Weighted    float64      `json:"weighted"`
	Description string       `json:"description"`
	Factors     []Adjustment `json:"factors,omitempty"`
}

type Explanation struct {
	Components      []ComponentExplanation `json:"components"`
	WeightedSum     float64                `json:"weighted_sum"`
	Adjustments     []Adjustment           `json:"adjustments"`
	Total           float64                `json:"total"`
	MatchedKeywords []string               `json:"matched_keywords"`
}

// Explain reports how Score arrives at its numbers for the same input.
func (e *Engine) Explain(in Input, p Profile) Explanation {
	b := e.evaluate(in, p)
	w := e.cfg.Weights

	relevanceDesc := "no keyword matches"
	if len(b.matched) > 0 {
		relevanceDesc = fmt.Sprintf("matched %d keyword(s): %s", len(b.matched), strings.Join(b.matched, ", "))
	}
	relevanceFactors := []Adjustment{
		{Reason: "title matches (capped at 60)", Delta: round2(b.titlePoints)},
		{Reason: "description matches (capped at 40)", Delta: round2(b.descPoints)},
	}
	if b.categoryBonus > 0 {
		relevanceFactors = append(relevanceFactors, Adjustment{Reason: "category bonus", Delta: round2(b.categoryBonus)})
	}

	competitionDesc := fmt.Sprintf("base %.0f", competitionBase)
	if len(b.compFactors) == 0 {
		competitionDesc += " with no adjustments"
	}

	return Explanation{
		Components: []ComponentExplanation{
			{Name: "relevance", Score: b.relevance, Weight: w.Relevance, Weighted: round2(b.relevance * w.Relevance), Description: relevanceDesc, Factors: relevanceFactors},
			{Name: "urgency", Score: b.urgency, Weight: w.Urgency, Weighted: round2(b.urgency * w.Urgency), Description: b.urgencyNote},
			{Name: "value", Score: b.value, Weight: w.Value, Weighted: round2(b.value * w.Value), Description: b.valueNote},
			{Name: "competition", Score: b.competition, Weight: w.Competition, Weighted: round2(b.competition * w.Competition), Description: competitionDesc, Factors: b.compFactors},
		},
		WeightedSum:     round2(b.weighted),
		Adjustments:     b.adjustments,
		Total:           b.total,
		MatchedKeywords: b.matched,
	}
}

func describeDays(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("expired %d day(s) ago", -days)
	case days == 0:
		return "due today"
	default:
		return fmt.Sprintf("due in %d day(s)", days)
	}
}

func describeValue(v float64, sourceType string, threshold float64) string {
	tier := sourceType
	if tier == "" {
		tier = "default"
	}
	if threshold == 0 {
		return fmt.Sprintf("%s is below every %s tier", formatMoney(v), tier)
	}
	return fmt.Sprintf("%s meets the %s tier of %s", formatMoney(v), tier, formatMoney(threshold))
}

func formatMoney(v float64) string {
	switch {
	case v >= 1e9:
		return "$" + strconv.FormatFloat(v/1e9, 'f', -1, 64) + "B"
	case v >= 1e6:
		return "$" + strconv.FormatFloat(v/1e6, 'f', -1, 64) + "M"
	case v >= 1e3:
		return "$" + strconv.FormatFloat(v/1e3, 'f', -1, 64) + "K"
	}
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
