// Package scheduler decides which source to sync next and drives a sync run
// from fetch to audit log.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/david/opportunity-radar/internal/ingest"
	"github.com/david/opportunity-radar/internal/metrics"
	"github.com/david/opportunity-radar/internal/models"
)

// SourceStore persists data_sources rows.
type SourceStore interface {
	// UpsertSource creates the row if absent or refreshes its registry
	// metadata. last_sync_at is never touched.
	UpsertSource(ctx context.Context, ds models.DataSource) (models.DataSource, error)
	ListSources(ctx context.Context) ([]models.DataSource, error)
	MarkSynced(ctx context.Context, name string, at time.Time) error
}

// SyncLogStore persists the sync_logs audit trail.
type SyncLogStore interface {
	StartSyncLog(ctx context.Context, source string, startedAt time.Time) (models.SyncLog, error)
	FinishSyncLog(ctx context.Context, log models.SyncLog) error
	// LatestSyncLog returns models.ErrNotFound when the table is empty.
	LatestSyncLog(ctx context.Context) (models.SyncLog, error)
	// RecentSyncLogs returns up to limit logs for source, newest first. An
	// empty source means all sources.
	RecentSyncLogs(ctx context.Context, source string, limit int) ([]models.SyncLog, error)
	FailStaleRuns(ctx context.Context, startedBefore, at time.Time, reason string) (int, error)
}

// Saver is the dedup/upsert step.
type Saver interface {
	Save(ctx context.Context, src ingest.SourceConfig, records []ingest.RawRecord) (ingest.SaveResult, error)
}

// Sources is the configured source registry.
type Sources interface {
	Get(name string) (ingest.SourceConfig, bool)
	Active() []ingest.SourceConfig
	All() []ingest.SourceConfig
}

const (
	defaultFetchTimeout       = 90 * time.Second
	defaultBackgroundInterval = 30 * time.Minute
	defaultStaleAfter         = 2 * time.Hour

	staleReason = "stale run"
)

type Options struct {
	// FetchTimeout bounds one collaborator call.
	FetchTimeout time.Duration
	// BackgroundInterval is the global throttle between background runs.
	BackgroundInterval time.Duration
	// StaleAfter is when a running log is considered abandoned.
	StaleAfter time.Duration
	Metrics    metrics.Recorder
	Logger     *slog.Logger
	Now        func() time.Time
}

// Orchestrator runs syncs. It is safe for concurrent use; a source already
// being synced is skipped rather than run twice.
type Orchestrator struct {
	registry Sources
	fetcher  ingest.Fetcher
	saver    Saver
	sources  SourceStore
	logs     SyncLogStore

	fetchTimeout       time.Duration
	backgroundInterval time.Duration
	staleAfter         time.Duration
	metrics            metrics.Recorder
	logger             *slog.Logger
	now                func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

func New(registry Sources, fetcher ingest.Fetcher, saver Saver, sources SourceStore, logs SyncLogStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		registry:           registry,
		fetcher:            fetcher,
		saver:              saver,
		sources:            sources,
		logs:               logs,
		fetchTimeout:       opts.FetchTimeout,
		backgroundInterval: opts.BackgroundInterval,
		staleAfter:         opts.StaleAfter,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		now:                opts.Now,
		running:            make(map[string]bool),
	}
	if o.fetchTimeout <= 0 {
		o.fetchTimeout = defaultFetchTimeout
	}
	if o.backgroundInterval <= 0 {
		o.backgroundInterval = defaultBackgroundInterval
	}
	if o.staleAfter <= 0 {
		o.staleAfter = defaultStaleAfter
	}
	if o.metrics == nil {
		o.metrics = metrics.Noop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// SyncResult is the outcome of one source sync.
type SyncResult struct {
	Source     string   `json:"source"`
	Status     string   `json:"status"`
	Success    bool     `json:"success"`
	SyncLogID  int64    `json:"sync_log_id,omitempty"`
	Processed  int      `json:"processed"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Unchanged  int      `json:"unchanged"`
	Failed     int      `json:"failed"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	Message    string   `json:"message,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Totals sums counts over several SyncResults.
type Totals struct {
	Processed int `json:"processed"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// AggregateResult reports a multi-source sync. Success is true only when
// no source failed.
type AggregateResult struct {
	Success bool         `json:"success"`
	Results []SyncResult `json:"results"`
	Totals  Totals       `json:"totals"`
	Errors  []string     `json:"errors"`
}

func (a *AggregateResult) add(r SyncResult) {
	a.Results = append(a.Results, r)
	a.Totals.Processed += r.Processed
	a.Totals.Added += r.Added
	a.Totals.Updated += r.Updated
	a.Totals.Unchanged += r.Unchanged
	a.Totals.Failed += r.Failed
	if r.Status == models.SyncFailed {
		a.Success = false
		a.Errors = append(a.Errors, fmt.Sprintf("%s: %s", r.Source, r.Error))
	}
	for _, e := range r.Errors {
		a.Errors = append(a.Errors, fmt.Sprintf("%s: %s", r.Source, e))
	}
}

// SyncRegistry writes registry metadata into data_sources for every
// configured source, active or not.
func (o *Orchestrator) SyncRegistry(ctx context.Context) error {
	for _, src := range o.registry.All() {
		if _, err := o.sources.UpsertSource(ctx, src.DataSource()); err != nil {
			return fmt.Errorf("upsert source %q: %w", src.Name, err)
		}
	}
	return nil
}

// Sync runs one named source, or every active source in turn when name is
// empty. It never returns an error; failures are in the result.
func (o *Orchestrator) Sync(ctx context.Context, name string) AggregateResult {
	agg := AggregateResult{Success: true, Errors: []string{}}
	if name != "" {
		src, ok := o.registry.Get(name)
		if !ok {
			agg.add(SyncResult{Source: name, Status: models.SyncFailed, Error: "unknown source"})
			return agg
		}
		agg.add(o.RunSync(ctx, src))
		return agg
	}
	active := o.registry.Active()
	if len(active) == 0 {
		agg.add(SyncResult{Status: models.SyncSkipped, Success: true, Message: "no active sources"})
		return agg
	}
	for _, src := range active {
		if ctx.Err() != nil {
			agg.add(SyncResult{Source: src.Name, Status: models.SyncFailed, Error: ctx.Err().Error()})
			continue
		}
		agg.add(o.RunSync(ctx, src))
	}
	return agg
}

// SyncNext syncs the source that has waited longest. When nothing is due the
// result has status skipped and no sync log is written.
func (o *Orchestrator) SyncNext(ctx context.Context) SyncResult {
	known, err := o.activeSources(ctx)
	if err != nil {
		return SyncResult{Status: models.SyncFailed, Error: err.Error()}
	}
	next := NextSourceToSync(known, o.now())
	if next == nil {
		return SyncResult{Status: models.SyncSkipped, Success: true, Message: "no source due"}
	}
	src, _ := o.registry.Get(next.Name)
	return o.RunSync(ctx, src)
}

// activeSources returns the persisted rows of active registry sources,
// creating missing rows on the way.
func (o *Orchestrator) activeSources(ctx context.Context) ([]models.DataSource, error) {
	stored, err := o.sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	byName := make(map[string]models.DataSource, len(stored))
	for _, ds := range stored {
		byName[ds.Name] = ds
	}

	var out []models.DataSource
	for _, src := range o.registry.Active() {
		ds, ok := byName[src.Name]
		if !ok {
			if ds, err = o.sources.UpsertSource(ctx, src.DataSource()); err != nil {
				return nil, fmt.Errorf("create source %q: %w", src.Name, err)
			}
		}
		out = append(out, ds)
	}
	return out, nil
}

// RunSync performs one complete attempt against src.
func (o *Orchestrator) RunSync(ctx context.Context, src ingest.SourceConfig) SyncResult {
	res := SyncResult{Source: src.Name}
	if !o.claim(src.Name) {
		res.Status = models.SyncSkipped
		res.Success = true
		res.Message = "sync already running"
		return res
	}
	defer o.release(src.Name)

	logger := o.logger.With("source", src.Name)

	if _, err := o.sources.UpsertSource(ctx, src.DataSource()); err != nil {
		return o.abort(res, logger, fmt.Errorf("create source: %w", err))
	}

	started := o.now()
	entry, err := o.logs.StartSyncLog(ctx, src.Name, started)
	if err != nil {
		return o.abort(res, logger, fmt.Errorf("start sync log: %w", err))
	}
	res.SyncLogID = entry.ID
	logger = logger.With("sync_log_id", entry.ID)
	logger.Info("sync started")

	var runErr error
	records, err := o.fetch(ctx, src)
	if err != nil {
		runErr = fmt.Errorf("fetch: %w", err)
	} else {
		saved, err := o.saver.Save(ctx, src, records)
		res.Processed = saved.Processed
		res.Added = saved.Added
		res.Updated = saved.Updated
		res.Unchanged = saved.Unchanged
		res.Failed = saved.Failed
		res.Errors = saved.Errors
		if err != nil {
			runErr = fmt.Errorf("save: %w", err)
		}
	}

	finished := o.now()
	duration := finished.Sub(started)
	res.DurationMS = duration.Milliseconds()
	res.Status = models.SyncCompleted
	res.Success = true
	if runErr != nil {
		res.Status = models.SyncFailed
		res.Success = false
		res.Error = runErr.Error()
	}

	// The caller's context may be done by now; the audit trail still gets written.
	final := context.WithoutCancel(ctx)

	entry.Status = res.Status
	entry.RecordsProcessed = res.Processed
	entry.RecordsAdded = res.Added
	entry.RecordsUpdated = res.Updated
	entry.RecordsFailed = res.Failed
	entry.CompletedAt = &finished
	entry.DurationMS = &res.DurationMS
	if runErr != nil {
		msg := runErr.Error()
		entry.ErrorMessage = &msg
	}
	if err := o.logs.FinishSyncLog(final, entry); err != nil {
		logger.Error("finish sync log", "error", err)
	}
	if err := o.sources.MarkSynced(final, src.Name, finished); err != nil {
		logger.Error("mark source synced", "error", err)
	}

	o.metrics.RecordSync(src.Name, res.Status, duration)
	o.metrics.RecordRecords(src.Name, res.Added, res.Updated, res.Unchanged, res.Failed)

	if runErr != nil {
		logger.Warn("sync failed", "duration_ms", res.DurationMS, "processed", res.Processed, "error", runErr)
	} else {
		logger.Info("sync completed", "duration_ms", res.DurationMS,
			"processed", res.Processed, "added", res.Added, "updated", res.Updated, "failed", res.Failed)
	}
	return res
}

// abort reports a failure that happened before a sync log existed.
func (o *Orchestrator) abort(res SyncResult, logger *slog.Logger, err error) SyncResult {
	logger.Error("sync aborted", "error", err)
	o.metrics.RecordSync(res.Source, models.SyncFailed, 0)
	res.Status = models.SyncFailed
	res.Error = err.Error()
	return res
}

// fetch calls the collaborator under the fetch timeout. A panic inside the
// collaborator becomes an error.
func (o *Orchestrator) fetch(ctx context.Context, src ingest.SourceConfig) (records []ingest.RawRecord, err error) {
	fctx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collaborator panic: %v", r)
		}
	}()
	records, err = o.fetcher.Fetch(fctx, src)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("timed out after %s: %w", o.fetchTimeout, err)
	}
	return records, err
}

func (o *Orchestrator) claim(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[name] {
		return false
	}
	o.running[name] = true
	return true
}

func (o *Orchestrator) release(name string) {
	o.mu.Lock()
	delete(o.running, name)
	o.mu.Unlock()
}

// ShouldRunBackgroundSync is true when no sync was ever logged or the most
// recent one started at least the background interval ago. A store error
// reads as false so a broken database is not hammered.
func (o *Orchestrator) ShouldRunBackgroundSync(ctx context.Context) bool {
	last, err := o.logs.LatestSyncLog(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return true
	}
	if err != nil {
		o.logger.Warn("latest sync log", "error", err)
		return false
	}
	return o.now().Sub(last.StartedAt) >= o.backgroundInterval
}

// SweepStaleRuns marks logs left running past the stale threshold as failed.
func (o *Orchestrator) SweepStaleRuns(ctx context.Context) (int, error) {
	now := o.now()
	n, err := o.logs.FailStaleRuns(ctx, now.Add(-o.staleAfter), now, staleReason)
	if err != nil {
		return 0, fmt.Errorf("sweep stale runs: %w", err)
	}
	if n > 0 {
		o.logger.Warn("marked stale sync runs failed", "count", n)
	}
	return n, nil
}

// SourceStatus is one row of the sync status view.
type SourceStatus struct {
	models.DataSource
	MinInterval    string          `json:"min_interval"`
	NextEligibleAt *time.Time      `json:"next_eligible_at"`
	Due            bool            `json:"due"`
	HasAPIKey      bool            `json:"has_api_key"`
	LastRun        *models.SyncLog `json:"last_run"`
}

type Status struct {
	BackgroundDue bool            `json:"background_due"`
	LastRun       *models.SyncLog `json:"last_run"`
	Sources       []SourceStatus  `json:"sources"`
}

// Status reports the rotation state of every active source.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	known, err := o.activeSources(ctx)
	if err != nil {
		return Status{}, err
	}
	now := o.now()
	st := Status{BackgroundDue: o.ShouldRunBackgroundSync(ctx)}

	if last, err := o.logs.LatestSyncLog(ctx); err == nil {
		st.LastRun = &last
	} else if !errors.Is(err, models.ErrNotFound) {
		return Status{}, fmt.Errorf("latest sync log: %w", err)
	}

	for _, ds := range known {
		row := SourceStatus{
			DataSource:  ds,
			MinInterval: MinSyncInterval(ds.RateLimitPerHour).String(),
			Due:         Eligible(ds, now),
			HasAPIKey:   o.hasKey(ds),
		}
		if at := NextEligibleAt(ds); !at.IsZero() {
			row.NextEligibleAt = &at
		}
		logs, err := o.logs.RecentSyncLogs(ctx, ds.Name, 1)
		if err != nil {
			return Status{}, fmt.Errorf("recent sync logs: %w", err)
		}
		if len(logs) > 0 {
			row.LastRun = &logs[0]
		}
		st.Sources = append(st.Sources, row)
	}
	return st, nil
}

// Ranking scores every active source by holistic priority.
func (o *Orchestrator) Ranking(ctx context.Context) ([]Ranked, error) {
	known, err := o.activeSources(ctx)
	if err != nil {
		return nil, err
	}
	history := make(map[string][]models.SyncLog, len(known))
	for _, ds := range known {
		logs, err := o.logs.RecentSyncLogs(ctx, ds.Name, successWindow)
		if err != nil {
			return nil, fmt.Errorf("recent sync logs: %w", err)
		}
		history[ds.Name] = logs
	}
	return RankSources(known, history, o.hasKey, o.now()), nil
}

func (o *Orchestrator) hasKey(ds models.DataSource) bool {
	src, ok := o.registry.Get(ds.Name)
	if !ok {
		return !ds.APIKeyRequired
	}
	return !src.APIKeyRequired || src.HasAPIKey()
}
