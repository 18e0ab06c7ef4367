package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestJobLog_BeginAndComplete(t *testing.T) {
	runs := newMemoryRunStore()
	now := time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)
	log := NewJobLog(runs, fixedClock(now))

	run, err := log.Begin(context.Background(), "t1", "shopify")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if run.Status != SyncRunStatusRunning || run.ID == "" {
		t.Fatalf("expected running run with id, got %+v", run)
	}

	done, err := log.Complete(context.Background(), run, 42, map[string]any{"window": "2026-06-28..2026-07-01"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != SyncRunStatusSucceeded || done.InsertedCount != 42 {
		t.Fatalf("expected succeeded with inserted=42, got %+v", done)
	}
	if done.FinishedAt == nil {
		t.Fatalf("expected finished_at set")
	}

	stored, err := runs.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != SyncRunStatusSucceeded {
		t.Fatalf("expected stored status succeeded, got %s", stored.Status)
	}
}

func TestJobLog_FailRecordsCause(t *testing.T) {
	runs := newMemoryRunStore()
	log := NewJobLog(runs, fixedClock(time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)))

	run, err := log.Begin(context.Background(), "t1", "googleads")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	failed, err := log.Fail(context.Background(), run, errors.New("provider unavailable"))
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != SyncRunStatusFailed || failed.Error != "provider unavailable" {
		t.Fatalf("expected failed with cause, got %+v", failed)
	}
}

func TestJobLog_TerminalRunsAreImmutable(t *testing.T) {
	runs := newMemoryRunStore()
	log := NewJobLog(runs, fixedClock(time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)))

	run, _ := log.Begin(context.Background(), "t1", "shopify")
	done, err := log.Complete(context.Background(), run, 1, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := log.Fail(context.Background(), done, errors.New("late failure")); !errors.Is(err, ErrInvalidSyncRunTransition) {
		t.Fatalf("expected ErrInvalidSyncRunTransition, got %v", err)
	}
}

func TestJobLog_GuardInterrupted(t *testing.T) {
	runs := newMemoryRunStore()
	log := NewJobLog(runs, fixedClock(time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)))

	run, _ := log.Begin(context.Background(), "t1", "shopify")
	log.GuardInterrupted(context.Background(), run.ID)

	stored, err := runs.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != SyncRunStatusFailed || stored.Error != InterruptedRunMessage {
		t.Fatalf("expected failed(%q), got status=%s error=%q", InterruptedRunMessage, stored.Status, stored.Error)
	}

	// Guarding a terminal run is a no-op.
	completedRun, _ := log.Begin(context.Background(), "t1", "shopify")
	done, _ := log.Complete(context.Background(), completedRun, 7, nil)
	log.GuardInterrupted(context.Background(), done.ID)
	stored, _ = runs.Get(context.Background(), done.ID)
	if stored.Status != SyncRunStatusSucceeded || stored.InsertedCount != 7 {
		t.Fatalf("expected succeeded run untouched, got %+v", stored)
	}
}

func TestJobLog_SweepFailsStalledRuns(t *testing.T) {
	runs := newMemoryRunStore()
	started := time.Date(2026, 7, 1, 4, 0, 0, 0, time.UTC)
	log := NewJobLog(runs, fixedClock(started))

	stalled, _ := log.Begin(context.Background(), "t1", "shopify")

	cutoff := started.Add(time.Hour)
	fresh := SyncRun{TenantID: "t2", Source: "shopify", Status: SyncRunStatusRunning, StartedAt: cutoff.Add(time.Minute)}
	fresh, _ = runs.Begin(context.Background(), fresh)

	swept, err := log.Sweep(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept run, got %d", swept)
	}

	sweptRun, _ := runs.Get(context.Background(), stalled.ID)
	if sweptRun.Status != SyncRunStatusFailed || sweptRun.Error != InterruptedRunMessage {
		t.Fatalf("expected stalled run failed(%q), got %+v", InterruptedRunMessage, sweptRun)
	}
	freshRun, _ := runs.Get(context.Background(), fresh.ID)
	if freshRun.Status != SyncRunStatusRunning {
		t.Fatalf("expected fresh run untouched, got %s", freshRun.Status)
	}
}

func TestJobLog_BeginRequiresTenantAndSource(t *testing.T) {
	log := NewJobLog(newMemoryRunStore(), nil)
	if _, err := log.Begin(context.Background(), "", "shopify"); err == nil {
		t.Fatalf("expected error for missing tenant")
	}
	if _, err := log.Begin(context.Background(), "t1", "  "); err == nil {
		t.Fatalf("expected error for missing source")
	}
}
