package ingest

import (
	"context"
	"time"
)

// RawRecord is one loosely-typed record as returned by a source collaborator.
// No key is guaranteed to be present.
type RawRecord map[string]any

// Fetcher retrieves raw records for one configured source.
type Fetcher interface {
	Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, src SourceConfig) ([]RawRecord, error)

func (f FetcherFunc) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	return f(ctx, src)
}

// SaveResult counts the outcome of one batch passed through the Saver.
type SaveResult struct {
	Processed int      `json:"processed"`
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// maxReportedErrors bounds SaveResult.Errors so a bad batch does not bloat the audit log.
const maxReportedErrors = 20

func (r *SaveResult) fail(format string) {
	r.Failed++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, format)
	}
}

// Clock returns the processing time. Tests inject a fixed clock.
type Clock func() time.Time
