// Package app constructs the service graph shared by the server and the CLI
// tools. Nothing here is global; the caller owns the returned App.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/opportunity-radar/internal/ai"
	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/ingest"
	"github.com/david/opportunity-radar/internal/metrics"
	"github.com/david/opportunity-radar/internal/scheduler"
	"github.com/david/opportunity-radar/internal/scoring"
)

type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Pool         *pgxpool.Pool
	Store        *db.Store
	Registry     *ingest.Registry
	Engine       *scoring.Engine
	Profile      scoring.Profile
	Orchestrator *scheduler.Orchestrator
}

// New connects to the database, applies migrations and wires the sync
// pipeline. rec may be nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (*App, error) {
	registry, err := ingest.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	store := db.NewStore(pool)

	engine := scoring.NewEngine(scoring.Config{Location: cfg.Location})
	profile := scoring.Profile{Keywords: cfg.UserKeywords, PreferredStates: cfg.PreferredStates}

	saver := ingest.NewSaver(store, engine, ingest.SaverOptions{
		Profile: profile,
		Extractor: ingest.ExtractorConfig{
			PostedDatePolicy: ingest.PostedDatePolicy(cfg.PostedDatePolicy),
			Location:         cfg.Location,
		},
		Logger: logger,
	})

	fetchers := ingest.DefaultFetchers(ingest.FetcherDeps{
		Generator: ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, nil),
	})

	orch := scheduler.New(registry, fetchers, saver, store, store, scheduler.Options{
		FetchTimeout:       cfg.FetchTimeout,
		BackgroundInterval: cfg.BackgroundInterval,
		StaleAfter:         cfg.StaleRunAfter,
		Metrics:            rec,
		Logger:             logger,
	})
	if err := orch.SyncRegistry(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Store:        store,
		Registry:     registry,
		Engine:       engine,
		Profile:      profile,
		Orchestrator: orch,
	}, nil
}

func (a *App) Close() {
	a.Pool.Close()
}
