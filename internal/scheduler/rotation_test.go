package scheduler

import (
	"testing"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

var testNow = time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)

func syncedAgo(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func TestMinSyncInterval(t *testing.T) {
	tests := []struct {
		rate int
		want time.Duration
	}{
		{1000, time.Hour},
		{100, time.Hour},
		{99, 2 * time.Hour},
		{0, 2 * time.Hour},
	}
	for _, tt := range tests {
		if got := MinSyncInterval(tt.rate); got != tt.want {
			t.Errorf("MinSyncInterval(%d) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestNextSourceToSync_NeverSyncedFirst(t *testing.T) {
	sources := []models.DataSource{
		{Name: "SAM.gov", RateLimitPerHour: 60, LastSyncAt: syncedAgo(3 * time.Hour)},
		{Name: "Grants.gov", RateLimitPerHour: 100, LastSyncAt: syncedAgo(time.Hour)},
		{Name: "Texas SmartBuy", RateLimitPerHour: 60},
	}
	got := NextSourceToSync(sources, testNow)
	if got == nil || got.Name != "Texas SmartBuy" {
		t.Fatalf("next = %+v, want the never-synced source", got)
	}

	got = NextSourceToSync(sources[:2], testNow)
	if got == nil || got.Name != "SAM.gov" {
		t.Fatalf("next = %+v, want the longest-waiting source", got)
	}
}

func TestNextSourceToSync_RespectsInterval(t *testing.T) {
	sources := []models.DataSource{
		{Name: "low-volume", RateLimitPerHour: 60, LastSyncAt: syncedAgo(90 * time.Minute)},
		{Name: "high-volume", RateLimitPerHour: 100, LastSyncAt: syncedAgo(30 * time.Minute)},
	}
	if got := NextSourceToSync(sources, testNow); got != nil {
		t.Fatalf("next = %q, want nil while every source is inside its window", got.Name)
	}
	if got := NextSourceToSync(nil, testNow); got != nil {
		t.Fatalf("next of empty set = %q", got.Name)
	}
}

func TestNextSourceToSync_TieBreaksByName(t *testing.T) {
	sources := []models.DataSource{{Name: "b"}, {Name: "a"}, {Name: "c"}}
	for i := 0; i < 3; i++ {
		if got := NextSourceToSync(sources, testNow); got.Name != "a" {
			t.Fatalf("next = %q, want a", got.Name)
		}
	}
}

func TestSuccessRate(t *testing.T) {
	msg := "boom"
	ok := models.SyncLog{Status: models.SyncCompleted}
	bad := models.SyncLog{Status: models.SyncFailed, ErrorMessage: &msg}
	running := models.SyncLog{Status: models.SyncRunning}

	tests := []struct {
		name string
		logs []models.SyncLog
		want float64
	}{
		{"no history is neutral", nil, 0.5},
		{"three of four", []models.SyncLog{ok, bad, ok, ok}, 0.75},
		{"running ignored", []models.SyncLog{running, ok}, 1},
		{"only running", []models.SyncLog{running}, 0.5},
		{"window of ten", []models.SyncLog{ok, ok, ok, ok, ok, ok, ok, ok, ok, ok, bad, bad}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := successRate(tt.logs); got != tt.want {
				t.Fatalf("successRate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankSources(t *testing.T) {
	msg := "401 unauthorized"
	sources := []models.DataSource{
		{Name: "City Feed", Type: models.SourceLocalRFP, RateLimitPerHour: 60, LastSyncAt: syncedAgo(3 * time.Hour)},
		{Name: "SAM.gov", Type: models.SourceFederalContract, RateLimitPerHour: 100, APIKeyRequired: true},
		{Name: "Grants.gov", Type: models.SourceFederalGrant, RateLimitPerHour: 100, LastSyncAt: syncedAgo(30 * time.Minute)},
	}
	logs := map[string][]models.SyncLog{
		"City Feed": {{Status: models.SyncFailed, ErrorMessage: &msg}},
	}
	noKey := func(ds models.DataSource) bool { return ds.Name != "SAM.gov" }

	ranked := RankSources(sources, logs, noKey, testNow)
	if len(ranked) != 3 {
		t.Fatalf("ranked %d sources, want 3", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Score < ranked[i].Score {
			t.Fatalf("ranking not descending: %+v", ranked)
		}
	}

	byName := map[string]Ranked{}
	for _, r := range ranked {
		byName[r.Source.Name] = r
	}
	if byName["Grants.gov"].Eligible {
		t.Error("Grants.gov synced 30m ago should not be eligible")
	}
	if byName["City Feed"].SuccessRate != 0 {
		t.Errorf("City Feed success rate = %v, want 0", byName["City Feed"].SuccessRate)
	}

	withKey := RankSources(sources, logs, nil, testNow)
	var samWith, samWithout float64
	for _, r := range withKey {
		if r.Source.Name == "SAM.gov" {
			samWith = r.Score
		}
	}
	samWithout = byName["SAM.gov"].Score
	if samWith-samWithout != missingKeyPenalty {
		t.Errorf("missing key penalty = %v, want %v", samWith-samWithout, missingKeyPenalty)
	}

	next := NextByPriority(ranked)
	if next == nil || next.Name == "Grants.gov" {
		t.Fatalf("NextByPriority = %+v, want an eligible source", next)
	}
}

func TestPriorityScore_NeverSyncedBeatsRecent(t *testing.T) {
	fresh := PriorityScore(models.DataSource{Name: "a", RateLimitPerHour: 60}, nil, true, testNow)
	old := PriorityScore(models.DataSource{Name: "b", RateLimitPerHour: 60, LastSyncAt: syncedAgo(3 * time.Hour)}, nil, true, testNow)
	if fresh.Score <= old.Score {
		t.Fatalf("never synced %.2f <= synced 3h ago %.2f", fresh.Score, old.Score)
	}
}
