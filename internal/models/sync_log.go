package models

import "time"

// Sync log statuses.
const (
	SyncRunning   = "running"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
	SyncSkipped   = "skipped"
)

// SyncLog is the audit record of one sync attempt against one source.
type SyncLog struct {
	ID               int64      `json:"id"`
	SourceName       string     `json:"source_name"`
	Status           string     `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsAdded     int        `json:"records_added"`
	RecordsUpdated   int        `json:"records_updated"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     *string    `json:"error_message"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	DurationMS       *int64     `json:"duration_ms"`
}

// Succeeded reports whether the attempt finished without an error message.
func (l SyncLog) Succeeded() bool {
	return l.ErrorMessage == nil || *l.ErrorMessage == ""
}
