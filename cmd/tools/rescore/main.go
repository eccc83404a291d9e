package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/ingest"
	"github.com/david/opportunity-radar/internal/logger"
	"github.com/david/opportunity-radar/internal/scoring"
)

// rescore recomputes stored scores and expires past-due rows. Urgency is a
// function of today's date, so scores drift between syncs of a source.
func main() {
	status := flag.String("status", "", "only rescore rows with this status")
	sourceType := flag.String("source-type", "", "only rescore rows of this source type")
	batchSize := flag.Int("batch-size", 100, "rows per page")
	dryRun := flag.Bool("dry-run", false, "report changes without writing them")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stderr, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	store := db.NewStore(pool)

	engine := scoring.NewEngine(scoring.Config{Location: cfg.Location})
	profile := scoring.Profile{Keywords: cfg.UserKeywords, PreferredStates: cfg.PreferredStates}
	now := time.Now().In(cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// created_at is never written by an update, so ascending pages stay stable.
	params := db.ListParams{
		Status:     *status,
		SourceType: *sourceType,
		Sort:       "created_at",
		Order:      "asc",
		PerPage:    *batchSize,
	}

	var scanned, rescored, expired, failed int
	page := 1
	for {
		params.Page = page
		left := 0
		res, err := store.ListOpportunities(ctx, params)
		if err != nil {
			log.Error("list opportunities", "page", page, "error", err)
			os.Exit(1)
		}
		for i := range res.Opportunities {
			o := &res.Opportunities[i]
			scanned++
			statusChanged := ingest.ExpirePastDue(o, today)
			scoreChanged := engine.Rescore(o, profile)
			if !statusChanged && !scoreChanged {
				continue
			}
			if statusChanged {
				expired++
			}
			if scoreChanged {
				rescored++
			}
			if *dryRun {
				continue
			}
			if err := store.UpdateOpportunity(ctx, o); err != nil {
				failed++
				log.Warn("update failed", "id", o.ID, "external_id", o.ExternalID, "error", err)
				continue
			}
			if statusChanged && *status != "" {
				left++
			}
		}
		// Rows that left the status filter shift later rows onto this page.
		if left > 0 {
			scanned -= len(res.Opportunities) - left
			continue
		}
		if !res.HasNext {
			break
		}
		page++
	}

	log.Info("rescore finished", "scanned", scanned, "rescored", rescored, "expired", expired, "failed", failed, "dry_run", *dryRun)
	if failed > 0 {
		os.Exit(1)
	}
}
