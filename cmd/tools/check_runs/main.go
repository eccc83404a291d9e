package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/opportunity-radar/internal/app"
	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/logger"
	"github.com/david/opportunity-radar/internal/metrics"
)

func main() {
	source := flag.String("source", "", "only show runs of this source")
	limit := flag.Int("limit", 10, "number of runs to show")
	rank := flag.Bool("rank", false, "also print the source priority ranking")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(os.Stderr, cfg.LogLevel)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, metrics.Noop{})
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	logs, err := a.Store.RecentSyncLogs(ctx, *source, *limit)
	if err != nil {
		log.Error("recent sync logs", "error", err)
		os.Exit(1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Source", "Status", "Processed", "Added", "Updated", "Failed", "Duration", "Started At", "Error"})
	for _, l := range logs {
		duration := "Running..."
		if l.DurationMS != nil {
			duration = (time.Duration(*l.DurationMS) * time.Millisecond).Round(time.Second).String()
		}
		errMsg := ""
		if l.ErrorMessage != nil {
			errMsg = *l.ErrorMessage
		}
		t.AppendRow(table.Row{l.ID, l.SourceName, l.Status, l.RecordsProcessed, l.RecordsAdded, l.RecordsUpdated, l.RecordsFailed, duration, l.StartedAt.Format("2006-01-02 15:04:05"), errMsg})
	}
	t.Render()

	if !*rank {
		return
	}
	ranked, err := a.Orchestrator.Ranking(ctx)
	if err != nil {
		log.Error("ranking", "error", err)
		os.Exit(1)
	}
	rt := table.NewWriter()
	rt.SetOutputMirror(os.Stdout)
	rt.AppendHeader(table.Row{"#", "Source", "Score", "Eligible", "Success Rate", "Last Sync", "Reasons"})
	for i, r := range ranked {
		last := "never"
		if r.Source.LastSyncAt != nil {
			last = r.Source.LastSyncAt.Format("2006-01-02 15:04")
		}
		rt.AppendRow(table.Row{i + 1, r.Source.Name, fmt.Sprintf("%.1f", r.Score), r.Eligible, fmt.Sprintf("%.0f%%", r.SuccessRate*100), last, strings.Join(r.Reasons, "; ")})
	}
	rt.Render()
}
