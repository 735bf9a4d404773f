package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveTurn("onboarding", "search", "ok", 20*time.Millisecond)
	rec.ObserveTurn("onboarding", "search", "ok", 10*time.Millisecond)
	rec.ObserveTransition("onboarding", "discovery")
	rec.ObserveTransition("discovery", "discovery")
	rec.ObserveCollaborator("listing_search", false, time.Millisecond)
	rec.IncInterrupt("awaiting_search_confirmation", "suspend")

	if got := testutil.ToFloat64(rec.turnsTotal.WithLabelValues("onboarding", "search", "ok")); got != 2 {
		t.Fatalf("turns = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(rec.transitionsTotal); got != 1 {
		t.Fatalf("transition series = %d, want 1 (self-transitions ignored)", got)
	}
	if got := testutil.ToFloat64(rec.collaboratorCalls.WithLabelValues("listing_search", "error")); got != 1 {
		t.Fatalf("collaborator errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.interruptsTotal.WithLabelValues("awaiting_search_confirmation", "suspend")); got != 1 {
		t.Fatalf("interrupts = %v, want 1", got)
	}
}
