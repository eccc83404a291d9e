// Package metrics collects and exposes Prometheus metrics for sync runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the sync orchestrator reports to.
type Recorder interface {
	RecordSync(source, status string, duration time.Duration)
	RecordRecords(source string, added, updated, unchanged, failed int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	runs     *prometheus.CounterVec
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_sync_runs_total",
			Help: "Sync attempts by source and final status.",
		}, []string{"source", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_sync_records_total",
			Help: "Records seen by sync runs, by outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radar_sync_duration_seconds",
			Help:    "Wall time of sync attempts.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"source"}),
	}

	reg.MustRegister(c.runs, c.records, c.duration)
	return c
}

func (c *Collector) RecordSync(source, status string, duration time.Duration) {
	c.runs.WithLabelValues(source, status).Inc()
	c.duration.WithLabelValues(source).Observe(duration.Seconds())
}

func (c *Collector) RecordRecords(source string, added, updated, unchanged, failed int) {
	for outcome, n := range map[string]int{"added": added, "updated": updated, "unchanged": unchanged, "failed": failed} {
		if n > 0 {
			c.records.WithLabelValues(source, outcome).Add(float64(n))
		}
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything. Used by CLI tools that exit after one run.
type Noop struct{}

func (Noop) RecordSync(string, string, time.Duration) {}
func (Noop) RecordRecords(string, int, int, int, int) {}
