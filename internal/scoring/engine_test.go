package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

var fixedNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(Config{Now: func() time.Time { return fixedNow }})
}

func daysFromNow(n int) *time.Time {
	d := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &d
}

func floatPtr(v float64) *float64 { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWeighted_CompositeWeights(t *testing.T) {
	e := newTestEngine()
	got := e.Weighted(80, 60, 40, 20)
	if !approx(got, 58) {
		t.Fatalf("Weighted(80,60,40,20) = %v, want 58", got)
	}
}

func TestUrgencyForDays(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{-1, 0}, {0, 100}, {7, 100}, {8, 80}, {14, 80}, {15, 60}, {30, 60},
		{31, 40}, {60, 40}, {61, 20}, {90, 20}, {91, 10}, {365, 10},
	}
	for _, tt := range tests {
		if got := UrgencyForDays(tt.days); got != tt.want {
			t.Errorf("UrgencyForDays(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestUrgency_MonotonicForFutureDates(t *testing.T) {
	e := newTestEngine()
	prev := math.Inf(1)
	for d := 0; d <= 200; d++ {
		s := e.Score(Input{Title: "Monotonic urgency check", DueDate: daysFromNow(d)}, Profile{})
		if s.Urgency > prev {
			t.Fatalf("urgency rose from %v to %v at day %d", prev, s.Urgency, d)
		}
		prev = s.Urgency
	}
}

func TestUrgency_MissingDueDateIsNeutral(t *testing.T) {
	s := newTestEngine().Score(Input{Title: "No deadline at all here"}, Profile{})
	if s.Urgency != NeutralUrgency {
		t.Fatalf("urgency = %v, want neutral %v", s.Urgency, NeutralUrgency)
	}
}

func TestScore_Bounds(t *testing.T) {
	e := newTestEngine()
	titles := []string{"", "x", "Cloud software cybersecurity data analytics machine learning network database saas devops"}
	descs := []string{"", "Small business veteran women-owned 8(a) hubzone specialized niche proprietary sole source compliance clearance"}
	values := []*float64{nil, floatPtr(0), floatPtr(5), floatPtr(50_000_000_000)}
	dues := []*time.Time{nil, daysFromNow(-30), daysFromNow(0), daysFromNow(3), daysFromNow(500)}
	types := []string{"", models.SourceFederalContract, models.SourceStateRFP, models.SourceAIDiscovery}
	locations := []string{"", "Austin, TX", "Nationwide"}

	long := make([]rune, 6000)
	for i := range long {
		long[i] = 'a'
	}
	descs = append(descs, string(long))

	for _, title := range titles {
		for _, desc := range descs {
			for _, v := range values {
				for _, due := range dues {
					for _, st := range types {
						for _, loc := range locations {
							in := Input{Title: title, Description: desc, EstimatedValue: v, DueDate: due, PostedDate: daysFromNow(0), SourceType: st, Location: loc, Category: "technology"}
							s := e.Score(in, Profile{Keywords: []string{"cloud", "software", "data"}, PreferredStates: []string{"TX"}})
							for name, got := range map[string]float64{
								"relevance": s.Relevance, "urgency": s.Urgency, "value": s.Value,
								"competition": s.Competition, "total": s.Total,
							} {
								if got < 0 || got > 100 {
									t.Fatalf("%s = %v out of bounds for %+v", name, got, in)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestRelevance(t *testing.T) {
	e := newTestEngine()

	t.Run("built-in keywords in title score", func(t *testing.T) {
		s := e.Score(Input{Title: "Cloud software modernization"}, Profile{})
		if s.Relevance <= 0 {
			t.Fatalf("relevance = %v, want > 0", s.Relevance)
		}
	})

	t.Run("user keywords outweigh nothing", func(t *testing.T) {
		in := Input{Title: "Janitorial services for county buildings"}
		base := e.Score(in, Profile{})
		boosted := e.Score(in, Profile{Keywords: []string{"janitorial"}})
		if boosted.Relevance <= base.Relevance {
			t.Fatalf("user keyword did not raise relevance: %v <= %v", boosted.Relevance, base.Relevance)
		}
		if !approx(boosted.Relevance-base.Relevance, titleHitPoints*userKeywordWeight) {
			t.Errorf("user keyword added %v, want %v", boosted.Relevance-base.Relevance, titleHitPoints*userKeywordWeight)
		}
	})

	t.Run("spelling variants match fuzzily", func(t *testing.T) {
		s := e.Score(Input{Title: "Enterprise cyber-security assessment"}, Profile{})
		if s.Relevance <= 0 {
			t.Fatalf("fuzzy variant did not match, relevance = %v", s.Relevance)
		}
	})

	t.Run("short keywords match whole words only", func(t *testing.T) {
		s := e.Score(Input{Title: "Grounds maintenance contract"}, Profile{Keywords: []string{"ai"}})
		plain := e.Score(Input{Title: "Grounds maintenance contract"}, Profile{})
		if s.Relevance != plain.Relevance {
			t.Fatalf("'ai' matched inside another word: %v vs %v", s.Relevance, plain.Relevance)
		}
	})

	t.Run("title contribution is capped", func(t *testing.T) {
		s := e.Score(Input{Title: "software cloud cybersecurity database network saas devops"}, Profile{})
		if s.Relevance > titleCap {
			t.Fatalf("relevance %v exceeds title cap %v with no description", s.Relevance, titleCap)
		}
	})

	t.Run("category bonus", func(t *testing.T) {
		in := Input{Title: "Janitorial services for county buildings"}
		without := e.Score(in, Profile{})
		in.Category = "Health Care"
		with := e.Score(in, Profile{})
		if !approx(with.Relevance-without.Relevance, categoryBonus*0.7) {
			t.Fatalf("category bonus = %v, want %v", with.Relevance-without.Relevance, categoryBonus*0.7)
		}
	})
}

func TestValueTiers(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		name       string
		sourceType string
		value      *float64
		want       float64
	}{
		{"missing value", models.SourceFederalContract, nil, NeutralValue},
		{"large contract", models.SourceFederalContract, floatPtr(12_000_000), 100},
		{"mid contract", models.SourceFederalContract, floatPtr(2_000_000), 80},
		{"same amount state rfp", models.SourceStateRFP, floatPtr(2_000_000), 100},
		{"grant tier", models.SourceFederalGrant, floatPtr(600_000), 80},
		{"tiny", models.SourceFederalContract, floatPtr(1_000), 20},
		{"unknown type uses fallback", "private_rfp", floatPtr(300_000), 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.Score(Input{Title: "Value tier check title", SourceType: tt.sourceType, EstimatedValue: tt.value}, Profile{})
			if s.Value != tt.want {
				t.Fatalf("value = %v, want %v", s.Value, tt.want)
			}
		})
	}
}

func TestCompetition(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		name string
		in   Input
		want float64
	}{
		{"federal baseline", Input{SourceType: models.SourceFederalContract}, 45},
		{"state single-state set-aside", Input{SourceType: models.SourceStateRFP, Location: "Austin, TX", SetAside: "Total Small Business Set-Aside"}, 65},
		{"multistate gets no bonus", Input{SourceType: models.SourceStateRFP, Location: "Nationwide"}, 50},
		{"large award penalty", Input{SourceType: models.SourceStateRFP, EstimatedValue: floatPtr(20_000_000)}, 30},
		{"short deadline", Input{SourceType: models.SourceStateRFP, DueDate: daysFromNow(5)}, 75},
		{"two-week deadline", Input{SourceType: models.SourceStateRFP, DueDate: daysFromNow(12)}, 65},
		{"stacked set-asides", Input{SourceType: models.SourceLocalRFP, SetAside: "SDVOSB", Description: "Open to women-owned and 8(a) firms"}, 80},
		{"niche keywords capped", Input{SourceType: models.SourceLocalRFP, Description: "specialized niche proprietary sole source work"}, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Score(tt.in, Profile{}).Competition; got != tt.want {
				t.Fatalf("competition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTotalAdjustments(t *testing.T) {
	e := newTestEngine()
	base := Input{
		Title:      "Janitorial Services for County Buildings",
		SourceType: models.SourceStateRFP,
		Location:   "Austin, TX",
		DueDate:    daysFromNow(45),
	}

	s := e.Score(base, Profile{})
	if !approx(s.Total, 28.25) {
		t.Fatalf("base total = %v, want 28.25 (%+v)", s.Total, s)
	}

	if got := e.Score(base, Profile{PreferredStates: []string{"Texas"}}).Total; !approx(got, 33.25) {
		t.Errorf("preferred state total = %v, want 33.25", got)
	}

	fresh := base
	fresh.PostedDate = daysFromNow(-3)
	if got := e.Score(fresh, Profile{}).Total; !approx(got, 33.25) {
		t.Errorf("new posting total = %v, want 33.25", got)
	}

	stale := base
	stale.PostedDate = daysFromNow(-30)
	if got := e.Score(stale, Profile{}).Total; !approx(got, 28.25) {
		t.Errorf("old posting total = %v, want 28.25", got)
	}

	complex := base
	complex.Description = "Proof of insurance required for all bidders on this project"
	if got := e.Score(complex, Profile{}).Total; !approx(got, 18.25) {
		t.Errorf("complexity total = %v, want 18.25", got)
	}
}

func TestExplain_MatchesScore(t *testing.T) {
	e := newTestEngine()
	in := Input{
		Title:          "Cloud software support services",
		Description:    "Small business set-aside for cloud hosting and help desk support.",
		SourceType:     models.SourceFederalContract,
		EstimatedValue: floatPtr(2_500_000),
		DueDate:        daysFromNow(10),
		PostedDate:     daysFromNow(-1),
		Location:       "Richmond, VA",
	}
	p := Profile{Keywords: []string{"help desk"}, PreferredStates: []string{"VA"}}

	s := e.Score(in, p)
	ex := e.Explain(in, p)

	if len(ex.Components) != 4 {
		t.Fatalf("got %d components, want 4", len(ex.Components))
	}
	want := map[string]float64{"relevance": s.Relevance, "urgency": s.Urgency, "value": s.Value, "competition": s.Competition}
	for _, c := range ex.Components {
		if c.Score != want[c.Name] {
			t.Errorf("%s explanation score = %v, want %v", c.Name, c.Score, want[c.Name])
		}
		if c.Description == "" {
			t.Errorf("%s has no description", c.Name)
		}
	}
	if ex.Total != s.Total {
		t.Errorf("explanation total = %v, want %v", ex.Total, s.Total)
	}

	sum := ex.WeightedSum
	for _, a := range ex.Adjustments {
		sum += a.Delta
	}
	if math.Abs(clamp(sum)-ex.Total) > 0.011 {
		t.Errorf("weighted sum plus adjustments = %v, total = %v", sum, ex.Total)
	}
	if len(ex.MatchedKeywords) == 0 {
		t.Error("expected matched keywords")
	}
}

func TestRescore(t *testing.T) {
	e := newTestEngine()
	o := models.Opportunity{
		Title:      "Janitorial Services for County Buildings",
		SourceType: models.SourceStateRFP,
		Location:   "Austin, TX",
		DueDate:    daysFromNow(45),
	}

	if !e.Rescore(&o, Profile{}) {
		t.Fatal("first rescore of an unscored row reported no change")
	}
	if !approx(o.TotalScore, 28.25) {
		t.Fatalf("total = %v, want 28.25", o.TotalScore)
	}
	if e.Rescore(&o, Profile{}) {
		t.Error("second rescore with the same clock reported a change")
	}

	later := NewEngine(Config{Now: func() time.Time { return fixedNow.AddDate(0, 0, 40) }})
	if !later.Rescore(&o, Profile{}) {
		t.Fatal("rescore after the deadline moved closer reported no change")
	}
	if o.UrgencyScore != 100 {
		t.Errorf("urgency = %v, want 100 with 5 days left", o.UrgencyScore)
	}
}
