package ingest

import (
	"testing"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

func TestDeriveStatus(t *testing.T) {
	today := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	past := today.AddDate(0, 0, -1)
	future := today.AddDate(0, 0, 10)

	tests := []struct {
		name       string
		raw        string
		due        *time.Time
		sourceType string
		want       string
	}{
		{"posted stays active", "posted", &future, models.SourceFederalGrant, models.StatusActive},
		{"sam active flag", "Yes", nil, models.SourceFederalContract, models.StatusActive},
		{"past due becomes expired", "posted", &past, models.SourceFederalGrant, models.StatusExpired},
		{"archived is expired", "Archived", &future, models.SourceFederalGrant, models.StatusExpired},
		{"awarded", "Awarded", nil, models.SourceStateRFP, models.StatusAwarded},
		{"unknown defaults to active", "", nil, models.SourceStateRFP, models.StatusActive},
		{"ai discoveries", "", nil, models.SourceAIDiscovery, models.StatusDiscovered},
		{"award feeds", "", nil, models.SourceFederalContractAward, models.StatusAwarded},
		{"awards keep status after due date", "", &past, models.SourceFederalContractAward, models.StatusAwarded},
		{"due today is still active", "open", &today, models.SourceLocalRFP, models.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveStatus(tt.raw, tt.due, tt.sourceType, today); got != tt.want {
				t.Fatalf("deriveStatus(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExpirePastDue(t *testing.T) {
	today := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	past := today.AddDate(0, 0, -3)

	o := models.Opportunity{Status: models.StatusActive, DueDate: &past}
	if !ExpirePastDue(&o, today) || o.Status != models.StatusExpired {
		t.Fatalf("active past-due row not expired: %q", o.Status)
	}

	awarded := models.Opportunity{Status: models.StatusAwarded, DueDate: &past}
	if ExpirePastDue(&awarded, today) {
		t.Error("awarded row should keep its status")
	}
	open := models.Opportunity{Status: models.StatusActive, DueDate: &today}
	if ExpirePastDue(&open, today) {
		t.Error("row due today should stay active")
	}
	undated := models.Opportunity{Status: models.StatusActive}
	if ExpirePastDue(&undated, today) {
		t.Error("row without due date should stay active")
	}
}
