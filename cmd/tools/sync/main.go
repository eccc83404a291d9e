package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/opportunity-radar/internal/app"
	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/logger"
	"github.com/david/opportunity-radar/internal/metrics"
	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scheduler"
)

func main() {
	source := flag.String("source", "", "sync only this source (e.g. sam_gov)")
	next := flag.Bool("next", false, "sync the source that has waited longest")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stderr, cfg.LogLevel)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, metrics.Noop{})
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var agg scheduler.AggregateResult
	if *next {
		res := a.Orchestrator.SyncNext(ctx)
		agg = scheduler.AggregateResult{Success: res.Status != models.SyncFailed, Results: []scheduler.SyncResult{res}}
		agg.Totals = scheduler.Totals{Processed: res.Processed, Added: res.Added, Updated: res.Updated, Unchanged: res.Unchanged, Failed: res.Failed}
		if res.Error != "" {
			agg.Errors = append(agg.Errors, res.Error)
		}
	} else {
		agg = a.Orchestrator.Sync(ctx, *source)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(agg)
	} else {
		render(agg)
	}
	if !agg.Success {
		os.Exit(1)
	}
}

func render(agg scheduler.AggregateResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status", "Processed", "Added", "Updated", "Failed", "Duration", "Message"})
	for _, r := range agg.Results {
		msg := r.Message
		if r.Error != "" {
			msg = r.Error
		}
		t.AppendRow(table.Row{r.Source, r.Status, r.Processed, r.Added, r.Updated, r.Failed, fmt.Sprintf("%dms", r.DurationMS), msg})
	}
	t.AppendFooter(table.Row{"Total", "", agg.Totals.Processed, agg.Totals.Added, agg.Totals.Updated, agg.Totals.Failed, "", ""})
	t.Render()

	for _, e := range agg.Errors {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
}
