package ingest

import (
	"strings"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

var statusHints = []struct {
	status string
	hints  []string
}{
	{models.StatusExpired, []string{"closed", "archived", "inactive", "cancel", "expired", "no longer accepting"}},
	{models.StatusAwarded, []string{"awarded", "award notice", "winners", "awardees"}},
	{models.StatusDiscovered, []string{"discovered"}},
	{models.StatusActive, []string{"open", "posted", "active", "forecast", "current", "yes"}},
}

func mapSourceStatus(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return ""
	case "no", "false":
		return models.StatusExpired
	}
	for _, group := range statusHints {
		for _, hint := range group.hints {
			if strings.Contains(raw, hint) {
				return group.status
			}
		}
	}
	return ""
}

// deriveStatus maps the source's status text and falls back on the source
// type. An active record whose due date has passed is expired.
func deriveStatus(raw string, due *time.Time, sourceType string, today time.Time) string {
	status := mapSourceStatus(raw)
	if status == "" {
		switch sourceType {
		case models.SourceAIDiscovery:
			status = models.StatusDiscovered
		case models.SourceFederalContractAward:
			status = models.StatusAwarded
		default:
			status = models.StatusActive
		}
	}
	if status == models.StatusActive && due != nil && due.Before(today) {
		return models.StatusExpired
	}
	return status
}

// ExpirePastDue flips an active opportunity whose due date is before today
// to expired. It reports whether the status changed.
func ExpirePastDue(o *models.Opportunity, today time.Time) bool {
	if o.Status != models.StatusActive || o.DueDate == nil || !o.DueDate.Before(today) {
		return false
	}
	o.Status = models.StatusExpired
	return true
}
