package scheduler

import (
	"context"
	"log/slog"
	"time"
)

const defaultTick = 5 * time.Minute

// Runner drives background syncs. Each tick sweeps stale runs and, when the
// global throttle allows it, syncs the next due source.
type Runner struct {
	orch   *Orchestrator
	tick   time.Duration
	logger *slog.Logger
}

func NewRunner(orch *Orchestrator, tick time.Duration, logger *slog.Logger) *Runner {
	if tick <= 0 {
		tick = defaultTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{orch: orch, tick: tick, logger: logger}
}

// Run blocks until ctx is done. The first tick happens immediately.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("background sync started", "tick", r.tick.String())
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		r.Tick(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info("background sync stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick performs one background step and reports the sync result, if any.
func (r *Runner) Tick(ctx context.Context) (SyncResult, bool) {
	if _, err := r.orch.SweepStaleRuns(ctx); err != nil {
		r.logger.Warn("stale run sweep", "error", err)
	}
	if !r.orch.ShouldRunBackgroundSync(ctx) {
		return SyncResult{}, false
	}
	res := r.orch.SyncNext(ctx)
	if res.Status != "" && res.Source == "" {
		r.logger.Debug("background sync", "status", res.Status, "message", res.Message, "error", res.Error)
	}
	return res, true
}
