package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const InterruptedRunMessage = "sync interrupted"

// JobLog records one entry per sync attempt and guarantees every running
// entry reaches a terminal state, even across crashes.
type JobLog struct {
	runs  SyncRunStore
	clock func() time.Time
}

func NewJobLog(runs SyncRunStore, clock func() time.Time) *JobLog {
	if clock == nil {
		clock = time.Now
	}
	return &JobLog{runs: runs, clock: clock}
}

func (l *JobLog) Begin(ctx context.Context, tenantID string, source string) (SyncRun, error) {
	if l == nil || l.runs == nil {
		return SyncRun{}, fmt.Errorf("core: job log requires a sync run store")
	}
	run := SyncRun{
		TenantID:  strings.TrimSpace(tenantID),
		Source:    strings.TrimSpace(source),
		Status:    SyncRunStatusRunning,
		StartedAt: l.clock().UTC(),
	}
	if run.TenantID == "" || run.Source == "" {
		return SyncRun{}, fmt.Errorf("core: tenant id and source are required for a sync run")
	}
	created, err := l.runs.Begin(ctx, run)
	if err != nil {
		return SyncRun{}, PersistenceError(err, "sync run insert failed")
	}
	return created, nil
}

func (l *JobLog) Complete(ctx context.Context, run SyncRun, inserted int, metadata map[string]any) (SyncRun, error) {
	return l.finish(ctx, run, SyncRunStatusSucceeded, "", inserted, metadata)
}

func (l *JobLog) Fail(ctx context.Context, run SyncRun, cause error) (SyncRun, error) {
	message := InterruptedRunMessage
	if cause != nil {
		message = cause.Error()
	}
	return l.finish(ctx, run, SyncRunStatusFailed, message, run.InsertedCount, run.Metadata)
}

func (l *JobLog) finish(ctx context.Context, run SyncRun, status SyncRunStatus, message string, inserted int, metadata map[string]any) (SyncRun, error) {
	if l == nil || l.runs == nil {
		return run, fmt.Errorf("core: job log requires a sync run store")
	}
	if err := run.TransitionTo(status, l.clock()); err != nil {
		return run, err
	}
	run.Error = message
	run.InsertedCount = inserted
	if metadata != nil {
		run.Metadata = RedactSensitiveMap(metadata)
	}
	updated, err := l.runs.Update(ctx, run)
	if err != nil {
		return run, PersistenceError(err, "sync run update failed")
	}
	return updated, nil
}

// GuardInterrupted force-fails a run still marked running. Deferred around
// the main sync body so a panic or early return never strands the entry.
func (l *JobLog) GuardInterrupted(ctx context.Context, runID string) {
	if l == nil || l.runs == nil || strings.TrimSpace(runID) == "" {
		return
	}
	run, err := l.runs.Get(ctx, runID)
	if err != nil || run.Status != SyncRunStatusRunning {
		return
	}
	_, _ = l.Fail(ctx, run, fmt.Errorf("%s", InterruptedRunMessage))
}

// Sweep converts running entries started before cutoff into failed. Invoked
// at the start of every run so crashed invocations cannot block dashboards.
func (l *JobLog) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if l == nil || l.runs == nil {
		return 0, fmt.Errorf("core: job log requires a sync run store")
	}
	swept, err := l.runs.SweepStalled(ctx, cutoff.UTC(), InterruptedRunMessage)
	if err != nil {
		return 0, PersistenceError(err, "sync run sweep failed")
	}
	return swept, nil
}
