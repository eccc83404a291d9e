package models

import (
	"time"

	"github.com/google/uuid"
)

// Source types.
const (
	SourceFederalContract      = "federal_contract"
	SourceFederalGrant         = "federal_grant"
	SourceFederalContractAward = "federal_contract_award"
	SourceStateRFP             = "state_rfp"
	SourceLocalRFP             = "local_rfp"
	SourcePrivateRFP           = "private_rfp"
	SourceScraped              = "scraped"
	SourceAIDiscovery          = "ai_discovery"
)

// Opportunity statuses.
const (
	StatusActive     = "active"
	StatusAwarded    = "awarded"
	StatusExpired    = "expired"
	StatusDiscovered = "discovered"
)

type Opportunity struct {
	ID           uuid.UUID `json:"id"`
	ExternalID   string    `json:"external_id"`
	SourceName   string    `json:"source_name"`
	DataSourceID *int64    `json:"data_source_id,omitempty"`

	Title        string `json:"title"`
	Description  string `json:"description"`
	AgencyName   string `json:"agency_name"`
	Location     string `json:"location"`
	ContactInfo  string `json:"contact_info"`
	ContactEmail string `json:"contact_email"`
	Category     string `json:"category"`
	SetAside     string `json:"set_aside"`

	// FullDescription is the untruncated text the scores were computed
	// from; empty when Description already holds all of it.
	FullDescription string `json:"-"`

	EstimatedValue *float64   `json:"estimated_value"`
	PostedDate     *time.Time `json:"posted_date"`
	DueDate        *time.Time `json:"due_date"`

	SourceType string `json:"source_type"`
	SourceURL  string `json:"source_url"`

	RelevanceScore   float64 `json:"relevance_score"`
	UrgencyScore     float64 `json:"urgency_score"`
	ValueScore       float64 `json:"value_score"`
	CompetitionScore float64 `json:"competition_score"`
	TotalScore       float64 `json:"total_score"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFederal reports whether the source type belongs to a federal program.
func IsFederal(sourceType string) bool {
	switch sourceType {
	case SourceFederalContract, SourceFederalGrant, SourceFederalContractAward:
		return true
	}
	return false
}
