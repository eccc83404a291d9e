package models

import "time"

// DataSource is a named external feed. LastSyncAt is nil until the first
// completed sync attempt.
type DataSource struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	BaseURL          string     `json:"base_url"`
	APIKeyRequired   bool       `json:"api_key_required"`
	RateLimitPerHour int        `json:"rate_limit_per_hour"`
	IsActive         bool       `json:"is_active"`
	LastSyncAt       *time.Time `json:"last_sync_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
