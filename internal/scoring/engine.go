// Package scoring ranks opportunities by relevance, urgency, value and
// competition, and explains how each score was reached.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

const (
	titleCap             = 60.0
	descriptionCap       = 40.0
	titleThreshold       = 80
	descriptionThreshold = 85
	titleHitPoints       = 15.0
	descriptionHitPoints = 8.0
	userKeywordWeight    = 2.0
	categoryBonus        = 10.0

	NeutralUrgency  = 50.0
	NeutralValue    = 50.0
	competitionBase = 50.0

	longDescriptionRunes = 5000
)

// Weights of the four components in the composite total.
type Weights struct {
	Relevance   float64
	Urgency     float64
	Value       float64
	Competition float64
}

var DefaultWeights = Weights{Relevance: 0.40, Urgency: 0.25, Value: 0.20, Competition: 0.15}

// Tiers are descending value thresholds scoring 100, 80, 60 and 40.
// Anything below the last threshold scores 20.
type Tiers [4]float64

var DefaultValueTiers = map[string]Tiers{
	models.SourceFederalContract:      {10_000_000, 1_000_000, 250_000, 50_000},
	models.SourceFederalContractAward: {10_000_000, 1_000_000, 250_000, 50_000},
	models.SourceFederalGrant:         {5_000_000, 500_000, 100_000, 25_000},
	models.SourceStateRFP:             {1_000_000, 250_000, 50_000, 10_000},
	models.SourceLocalRFP:             {1_000_000, 250_000, 50_000, 10_000},
}

var fallbackTiers = Tiers{1_000_000, 250_000, 50_000, 10_000}

// Input is everything the engine reads from an opportunity.
type Input struct {
	Title          string
	Description    string
	Category       string
	SourceType     string
	Location       string
	SetAside       string
	EstimatedValue *float64
	DueDate        *time.Time
	PostedDate     *time.Time
}

// FromOpportunity reads the scoring input of a stored row. The full
// description is preferred so a recomputation sees what ingestion scored.
func FromOpportunity(o models.Opportunity) Input {
	desc := o.FullDescription
	if desc == "" {
		desc = o.Description
	}
	return Input{
		Title:          o.Title,
		Description:    desc,
		Category:       o.Category,
		SourceType:     o.SourceType,
		Location:       o.Location,
		SetAside:       o.SetAside,
		EstimatedValue: o.EstimatedValue,
		DueDate:        o.DueDate,
		PostedDate:     o.PostedDate,
	}
}

// Profile personalises relevance and the preferred-state bonus.
type Profile struct {
	Keywords        []string `json:"keywords"`
	PreferredStates []string `json:"preferred_states"`
}

type Scores struct {
	Relevance   float64 `json:"relevance"`
	Urgency     float64 `json:"urgency"`
	Value       float64 `json:"value"`
	Competition float64 `json:"competition"`
	Total       float64 `json:"total"`
}

// Apply copies the scores onto o.
func (s Scores) Apply(o *models.Opportunity) {
	o.RelevanceScore = s.Relevance
	o.UrgencyScore = s.Urgency
	o.ValueScore = s.Value
	o.CompetitionScore = s.Competition
	o.TotalScore = s.Total
}

// Rescore recomputes the scores of o in place and reports whether any of
// them moved. Urgency and the new-posting bonus drift as days pass, so
// stored rows go stale without new ingestion.
func (e *Engine) Rescore(o *models.Opportunity, p Profile) bool {
	before := Scores{
		Relevance:   o.RelevanceScore,
		Urgency:     o.UrgencyScore,
		Value:       o.ValueScore,
		Competition: o.CompetitionScore,
		Total:       o.TotalScore,
	}
	after := e.Score(FromOpportunity(*o), p)
	if after == before {
		return false
	}
	after.Apply(o)
	return true
}

type Config struct {
	Weights    Weights
	Categories []Category
	ValueTiers map[string]Tiers
	Location   *time.Location
	Now        func() time.Time
}

// Engine is safe for concurrent use; it holds no mutable state.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if cfg.Categories == nil {
		cfg.Categories = DefaultCategories
	}
	if cfg.ValueTiers == nil {
		cfg.ValueTiers = DefaultValueTiers
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// breakdown holds every intermediate of one evaluation so Score and Explain
// read the same numbers.
type breakdown struct {
	relevance   float64
	urgency     float64
	value       float64
	competition float64

	matched       []string
	titlePoints   float64
	descPoints    float64
	categoryBonus float64
	urgencyNote   string
	valueNote     string
	compFactors   []Adjustment
	adjustments   []Adjustment
	weighted      float64
	total         float64
}

func (e *Engine) Score(in Input, p Profile) Scores {
	b := e.evaluate(in, p)
	return Scores{
		Relevance:   b.relevance,
		Urgency:     b.urgency,
		Value:       b.value,
		Competition: b.competition,
		Total:       b.total,
	}
}

// Weighted is the composite of the four components before bonuses and penalties.
func (e *Engine) Weighted(relevance, urgency, value, competition float64) float64 {
	w := e.cfg.Weights
	return relevance*w.Relevance + urgency*w.Urgency + value*w.Value + competition*w.Competition
}

// Today is the current calendar date in the configured location, as
// midnight UTC. Date columns and due dates compare against it.
func (e *Engine) Today() time.Time { return e.today() }

func (e *Engine) today() time.Time {
	now := e.cfg.Now().In(e.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// daysUntil counts calendar days from today to d; negative when d has passed.
func (e *Engine) daysUntil(d time.Time) int {
	target := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(target.Sub(e.today()).Hours() / 24))
}

func (e *Engine) evaluate(in Input, p Profile) breakdown {
	var b breakdown
	e.scoreRelevance(in, p, &b)

	b.urgency = NeutralUrgency
	b.urgencyNote = "no due date; neutral score"
	if in.DueDate != nil {
		days := e.daysUntil(*in.DueDate)
		b.urgency = UrgencyForDays(days)
		b.urgencyNote = describeDays(days)
	}

	b.value, b.valueNote = e.scoreValue(in)
	b.competition, b.compFactors = e.scoreCompetition(in)

	b.relevance = round2(b.relevance)
	b.urgency = round2(b.urgency)
	b.value = round2(b.value)
	b.competition = round2(b.competition)

	b.weighted = e.Weighted(b.relevance, b.urgency, b.value, b.competition)
	b.adjustments = e.adjustments(in, p)

	total := b.weighted
	for _, a := range b.adjustments {
		total += a.Delta
	}
	b.total = round2(clamp(total))
	return b
}

func (e *Engine) scoreRelevance(in Input, p Profile, b *breakdown) {
	title := strings.ToLower(in.Title)
	desc := strings.ToLower(in.Description)
	titleWords := tokenize(in.Title)
	descWords := tokenize(in.Description)

	seen := make(map[string]bool)
	apply := func(kw string, weight float64) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return
		}
		hit := false
		if matchKeyword(title, titleWords, kw, titleThreshold) {
			b.titlePoints += titleHitPoints * weight
			hit = true
		}
		if matchKeyword(desc, descWords, kw, descriptionThreshold) {
			b.descPoints += descriptionHitPoints * weight
			hit = true
		}
		if hit && !seen[kw] {
			seen[kw] = true
			b.matched = append(b.matched, kw)
		}
	}

	for _, kw := range p.Keywords {
		apply(kw, userKeywordWeight)
	}
	for _, c := range e.cfg.Categories {
		for _, kw := range c.Keywords {
			apply(kw, c.Weight)
		}
	}

	b.titlePoints = math.Min(b.titlePoints, titleCap)
	b.descPoints = math.Min(b.descPoints, descriptionCap)

	if in.Category != "" {
		cat := strings.ToLower(strings.ReplaceAll(in.Category, "_", " "))
		catWords := tokenize(cat)
		for _, c := range e.cfg.Categories {
			name := strings.ReplaceAll(c.Name, "_", " ")
			if matchKeyword(cat, catWords, name, titleThreshold) || ratio(cat, name) >= titleThreshold {
				b.categoryBonus = categoryBonus * c.Weight
				break
			}
		}
	}

	b.relevance = math.Min(b.titlePoints+b.descPoints+b.categoryBonus, 100)
}

// UrgencyForDays maps days until the due date to an urgency score.
func UrgencyForDays(days int) float64 {
	switch {
	case days < 0:
		return 0
	case days <= 7:
		return 100
	case days <= 14:
		return 80
	case days <= 30:
		return 60
	case days <= 60:
		return 40
	case days <= 90:
		return 20
	default:
		return 10
	}
}

func (e *Engine) tiersFor(sourceType string) Tiers {
	if t, ok := e.cfg.ValueTiers[sourceType]; ok {
		return t
	}
	return fallbackTiers
}

func (e *Engine) scoreValue(in Input) (float64, string) {
	if in.EstimatedValue == nil || *in.EstimatedValue <= 0 {
		return NeutralValue, "no estimated value; neutral score"
	}
	v := *in.EstimatedValue
	tiers := e.tiersFor(in.SourceType)
	scores := [4]float64{100, 80, 60, 40}
	for i, threshold := range tiers {
		if v >= threshold {
			return scores[i], describeValue(v, in.SourceType, threshold)
		}
	}
	return 20, describeValue(v, in.SourceType, 0)
}

func (e *Engine) scoreCompetition(in Input) (float64, []Adjustment) {
	var factors []Adjustment
	text := strings.ToLower(in.SetAside + " " + in.Title + " " + in.Description)
	words := tokenize(text)

	for _, prog := range setAsidePrograms {
		for _, ind := range prog.indicators {
			if matchKeyword(text, words, ind, 100) {
				factors = append(factors, Adjustment{Reason: prog.name + " set-aside", Delta: 10})
				break
			}
		}
	}

	desc := strings.ToLower(in.Description)
	descWords := tokenize(in.Description)
	niche := 0.0
	for _, kw := range nicheKeywords {
		if niche >= 15 {
			break
		}
		if matchKeyword(desc, descWords, kw, 100) {
			niche += 5
		}
	}
	if niche > 0 {
		factors = append(factors, Adjustment{Reason: "specialized requirements", Delta: niche})
	}

	if isSingleState(in.Location) {
		factors = append(factors, Adjustment{Reason: "single-state place of performance", Delta: 5})
	}

	if in.EstimatedValue != nil {
		switch v := *in.EstimatedValue; {
		case v > 10_000_000:
			factors = append(factors, Adjustment{Reason: "very large award", Delta: -20})
		case v > 1_000_000:
			factors = append(factors, Adjustment{Reason: "large award", Delta: -10})
		}
	}

	if in.DueDate != nil {
		switch days := e.daysUntil(*in.DueDate); {
		case days < 0:
		case days <= 7:
			factors = append(factors, Adjustment{Reason: "due within 7 days", Delta: 25})
		case days <= 14:
			factors = append(factors, Adjustment{Reason: "due within 14 days", Delta: 15})
		}
	}

	if models.IsFederal(in.SourceType) {
		factors = append(factors, Adjustment{Reason: "federal source", Delta: -5})
	}

	score := competitionBase
	for _, f := range factors {
		score += f.Delta
	}
	return clamp(score), factors
}

func (e *Engine) adjustments(in Input, p Profile) []Adjustment {
	var adj []Adjustment

	if in.PostedDate != nil {
		if age := -e.daysUntil(*in.PostedDate); age >= 0 && age <= 7 {
			adj = append(adj, Adjustment{Reason: "posted within the last 7 days", Delta: 5})
		}
	}

	if matchesPreferredState(in.Location, p.PreferredStates) {
		adj = append(adj, Adjustment{Reason: "location in a preferred state", Delta: 5})
	}

	if len([]rune(in.Description)) > longDescriptionRunes {
		adj = append(adj, Adjustment{Reason: "very long description", Delta: -5})
	}

	desc := strings.ToLower(in.Description)
	for _, ind := range complexityIndicators {
		if strings.Contains(desc, ind) {
			adj = append(adj, Adjustment{Reason: "complexity indicator: " + ind, Delta: -10})
			break
		}
	}
	return adj
}

func matchesPreferredState(location string, preferred []string) bool {
	if location == "" || len(preferred) == 0 {
		return false
	}
	found := statesIn(location)
	for _, p := range preferred {
		if code, ok := stateCode(p); ok && found[code] {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
