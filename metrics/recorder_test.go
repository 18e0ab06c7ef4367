package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder_IncCounterAccumulates(t *testing.T) {
	recorder := NewPrometheusRecorder("syncengine")
	ctx := context.Background()

	tags := map[string]string{"source": "shopify", "status": "succeeded"}
	recorder.IncCounter(ctx, "provider_sync.success", 1, tags)
	recorder.IncCounter(ctx, "provider_sync.success", 2, tags)

	entry := recorder.counter("provider_sync.success", tags)
	got := testutil.ToFloat64(entry.vec.With(alignTags(entry.labels, tags)))
	if got != 3 {
		t.Fatalf("expected counter value 3, got %v", got)
	}
}

func TestPrometheusRecorder_IgnoresNonPositiveCounts(t *testing.T) {
	recorder := NewPrometheusRecorder("syncengine")
	ctx := context.Background()

	recorder.IncCounter(ctx, "provider_sync.error", 0, nil)
	recorder.IncCounter(ctx, "provider_sync.error", -5, nil)

	entry := recorder.counter("provider_sync.error", nil)
	got := testutil.ToFloat64(entry.vec.With(alignTags(entry.labels, nil)))
	if got != 0 {
		t.Fatalf("expected untouched counter, got %v", got)
	}
}

func TestPrometheusRecorder_HistogramCountsObservations(t *testing.T) {
	recorder := NewPrometheusRecorder("syncengine")
	ctx := context.Background()

	tags := map[string]string{"source": "googleads"}
	recorder.ObserveHistogram(ctx, "tenant_sync.duration_ms", 120, tags)
	recorder.ObserveHistogram(ctx, "tenant_sync.duration_ms", 340, tags)

	families, err := recorder.gatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() != "syncengine_tenant_sync_duration_ms" {
			continue
		}
		found = true
		if len(family.GetMetric()) != 1 {
			t.Fatalf("expected a single series, got %d", len(family.GetMetric()))
		}
		if count := family.GetMetric()[0].GetHistogram().GetSampleCount(); count != 2 {
			t.Fatalf("expected 2 observations, got %d", count)
		}
	}
	if !found {
		t.Fatalf("histogram family not registered")
	}
}

func TestPrometheusRecorder_LaterTagsProjectOntoFirstLabelSet(t *testing.T) {
	recorder := NewPrometheusRecorder("syncengine")
	ctx := context.Background()

	recorder.IncCounter(ctx, "sync_runs", 1, map[string]string{"source": "shopify"})
	// Unknown key dropped, known key absent becomes empty.
	recorder.IncCounter(ctx, "sync_runs", 1, map[string]string{"tenant": "t1"})

	entry := recorder.counter("sync_runs", nil)
	if len(entry.labels) != 1 || entry.labels[0] != "source" {
		t.Fatalf("expected label set fixed to [source], got %v", entry.labels)
	}
	got := testutil.ToFloat64(entry.vec.With(map[string]string{"source": ""}))
	if got != 1 {
		t.Fatalf("expected empty-source series value 1, got %v", got)
	}
}

func TestSanitizeMetricName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "provider_sync.success", want: "provider_sync_success"},
		{in: "tenant-sync/duration", want: "tenant_sync_duration"},
		{in: "9lives", want: "_9lives"},
	}
	for _, tc := range cases {
		if got := sanitizeMetricName(tc.in); got != tc.want {
			t.Fatalf("sanitize %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
