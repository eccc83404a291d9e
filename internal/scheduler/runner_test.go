package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

func TestRunner_TickThrottles(t *testing.T) {
	h := newHarness(t, nil)
	r := NewRunner(h.orch, time.Minute, nil)
	ctx := context.Background()

	res, ran := r.Tick(ctx)
	if !ran || res.Status != models.SyncCompleted {
		t.Fatalf("first tick = %+v (ran=%v), want a completed sync", res, ran)
	}
	if _, ran := r.Tick(ctx); ran {
		t.Fatal("second tick ran inside the background interval")
	}
	h.advance(30 * time.Minute)
	if _, ran := r.Tick(ctx); !ran {
		t.Fatal("tick after the interval did not run")
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	r := NewRunner(h.orch, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
