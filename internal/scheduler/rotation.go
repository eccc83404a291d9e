package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

const (
	highVolumeRate  = 100
	shortInterval   = time.Hour
	defaultInterval = 2 * time.Hour

	// successWindow is how many recent sync logs feed the success rate.
	successWindow = 10
)

// MinSyncInterval is the least time between two syncs of a source with the
// given hourly rate limit.
func MinSyncInterval(rateLimitPerHour int) time.Duration {
	if rateLimitPerHour >= highVolumeRate {
		return shortInterval
	}
	return defaultInterval
}

// Eligible reports whether ds may be synced at now. Never-synced sources
// always are.
func Eligible(ds models.DataSource, now time.Time) bool {
	if ds.LastSyncAt == nil {
		return true
	}
	return now.Sub(*ds.LastSyncAt) >= MinSyncInterval(ds.RateLimitPerHour)
}

// NextEligibleAt is when ds next becomes eligible; the zero time for sources
// that never synced.
func NextEligibleAt(ds models.DataSource) time.Time {
	if ds.LastSyncAt == nil {
		return time.Time{}
	}
	return ds.LastSyncAt.Add(MinSyncInterval(ds.RateLimitPerHour))
}

// NextSourceToSync picks the eligible source that has waited longest, with
// never-synced sources first. Ties go to the smaller name. It returns nil
// when nothing is due.
func NextSourceToSync(sources []models.DataSource, now time.Time) *models.DataSource {
	var best *models.DataSource
	var bestWait time.Duration
	for i := range sources {
		ds := &sources[i]
		if !Eligible(*ds, now) {
			continue
		}
		wait := waited(*ds, now)
		if best == nil || wait > bestWait || (wait == bestWait && ds.Name < best.Name) {
			best, bestWait = ds, wait
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func waited(ds models.DataSource, now time.Time) time.Duration {
	if ds.LastSyncAt == nil {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(*ds.LastSyncAt)
}

// Ranked is one source with its holistic priority.
type Ranked struct {
	Source      models.DataSource `json:"source"`
	Score       float64           `json:"score"`
	Eligible    bool              `json:"eligible"`
	SuccessRate float64           `json:"success_rate"`
	Reasons     []string          `json:"reasons"`
}

// Priority weights.
const (
	neverSyncedBonus  = 50.0
	maxOverdueHours   = 48.0
	maxRateBonus      = 20.0
	successWeight     = 30.0
	neutralSuccess    = 0.5
	federalBonus      = 10.0
	missingKeyPenalty = 50.0
)

// PriorityScore rewards never-synced and overdue sources, higher rate
// limits, recent success and federal programs. A source whose required API
// key is missing is pushed down.
func PriorityScore(ds models.DataSource, recent []models.SyncLog, hasKey bool, now time.Time) Ranked {
	r := Ranked{Source: ds, Eligible: Eligible(ds, now)}

	if ds.LastSyncAt == nil {
		r.Score += neverSyncedBonus
		r.Reasons = append(r.Reasons, "never synced")
	} else {
		hours := math.Min(now.Sub(*ds.LastSyncAt).Hours(), maxOverdueHours)
		if hours > 0 {
			r.Score += hours
		}
	}

	r.Score += math.Min(float64(ds.RateLimitPerHour)/10, maxRateBonus)

	r.SuccessRate = successRate(recent)
	r.Score += successWeight * r.SuccessRate

	if models.IsFederal(ds.Type) {
		r.Score += federalBonus
		r.Reasons = append(r.Reasons, "federal source")
	}

	if ds.APIKeyRequired && !hasKey {
		r.Score -= missingKeyPenalty
		r.Reasons = append(r.Reasons, "api key missing")
	}

	r.Score = math.Round(r.Score*100) / 100
	return r
}

// successRate is the share of the first successWindow logs without an error
// message. Logs are expected newest first. No history counts as neutral.
func successRate(logs []models.SyncLog) float64 {
	if len(logs) > successWindow {
		logs = logs[:successWindow]
	}
	var done, ok int
	for _, l := range logs {
		if l.Status == models.SyncRunning {
			continue
		}
		done++
		if l.Succeeded() {
			ok++
		}
	}
	if done == 0 {
		return neutralSuccess
	}
	return float64(ok) / float64(done)
}

// RankSources scores every source, highest priority first. logs maps a
// source name to its recent sync logs, newest first.
func RankSources(sources []models.DataSource, logs map[string][]models.SyncLog, hasKey func(models.DataSource) bool, now time.Time) []Ranked {
	out := make([]Ranked, 0, len(sources))
	for _, ds := range sources {
		key := true
		if hasKey != nil {
			key = hasKey(ds)
		}
		out = append(out, PriorityScore(ds, logs[ds.Name], key, now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Source.Name < out[j].Source.Name
	})
	return out
}

// NextByPriority is the highest-ranked eligible source, or nil.
func NextByPriority(ranked []Ranked) *models.DataSource {
	for _, r := range ranked {
		if r.Eligible {
			ds := r.Source
			return &ds
		}
	}
	return nil
}
