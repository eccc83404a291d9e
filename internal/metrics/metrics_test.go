package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func find(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func TestRecordSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSync("SAM.gov", "completed", 2*time.Second)
	c.RecordSync("SAM.gov", "completed", time.Second)
	c.RecordSync("SAM.gov", "failed", time.Second)

	m := find(t, reg, "radar_sync_runs_total", map[string]string{"source": "SAM.gov", "status": "completed"})
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Fatalf("completed runs = %v, want 2", m)
	}
	h := find(t, reg, "radar_sync_duration_seconds", map[string]string{"source": "SAM.gov"})
	if h == nil || h.GetHistogram().GetSampleCount() != 3 {
		t.Fatalf("duration samples = %v, want 3", h)
	}
}

func TestRecordRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRecords("Grants.gov", 4, 0, 2, 1)

	if m := find(t, reg, "radar_sync_records_total", map[string]string{"outcome": "added"}); m == nil || m.GetCounter().GetValue() != 4 {
		t.Errorf("added = %v, want 4", m)
	}
	if m := find(t, reg, "radar_sync_records_total", map[string]string{"outcome": "updated"}); m != nil {
		t.Errorf("zero counts should not create series, got %v", m)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordSync("x", "completed", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "radar_sync_runs_total") {
		t.Fatalf("status %d body %s", rec.Code, body)
	}
}
