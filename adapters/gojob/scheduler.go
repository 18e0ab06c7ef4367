package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/ohjayaxel/syncengine/core"
	syncengine "github.com/ohjayaxel/syncengine/sync"
)

// SyncService is the orchestration surface queue consumers dispatch into.
type SyncService interface {
	SyncProvider(ctx context.Context, source string, req syncengine.Request) (syncengine.Response, error)
}

// Runner consumes sync job messages and dispatches them to the orchestrator.
// Per-tenant failures are reported inside the response body, so a delivery is
// only nacked when the invocation itself fails.
type Runner struct {
	dequeuer core.JobDequeuer
	service  SyncService
	policy   RetryPolicy
	observer *core.Observer
}

func NewRunner(dequeuer core.JobDequeuer, service SyncService, policy RetryPolicy, observer *core.Observer) (*Runner, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if service == nil {
		return nil, fmt.Errorf("gojob: sync service is required")
	}
	return &Runner{dequeuer: dequeuer, service: service, policy: policy, observer: observer}, nil
}

// Run consumes deliveries until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.observer.LogError(ctx, "job processing failed", map[string]any{"error": err.Error()})
		}
	}
}

// ProcessOne handles a single delivery end to end.
func (r *Runner) ProcessOne(ctx context.Context) error {
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	source, req, err := SyncRequestFromMessage(msg)
	if err != nil {
		// Undecodable messages can never succeed on retry.
		return delivery.Nack(ctx, core.JobNackOptions{
			Requeue:    false,
			DeadLetter: true,
			Reason:     err.Error(),
		})
	}

	if _, err := r.service.SyncProvider(ctx, source, req); err != nil {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Delay:   time.Minute,
			Requeue: true,
			Reason:  err.Error(),
		})
		if nackErr != nil {
			return nackErr
		}
		return err
	}
	return delivery.Ack(ctx)
}

// Scheduler enqueues recurring incremental syncs for the configured sources.
// The idempotency key buckets by interval so overlapping schedulers collapse
// into one message per tick.
type Scheduler struct {
	enqueuer core.JobEnqueuer
	sources  []string
	interval time.Duration
	observer *core.Observer
	now      func() time.Time
}

const defaultScheduleInterval = time.Hour

func NewScheduler(enqueuer core.JobEnqueuer, sources []string, interval time.Duration, observer *core.Observer) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("gojob: at least one source is required")
	}
	if interval <= 0 {
		interval = defaultScheduleInterval
	}
	return &Scheduler{
		enqueuer: enqueuer,
		sources:  sources,
		interval: interval,
		observer: observer,
		now:      time.Now,
	}, nil
}

// Run emits one batch immediately and then once per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.EnqueueOnce(ctx); err != nil {
		s.observer.LogError(ctx, "scheduled sync enqueue failed", map[string]any{"error": err.Error()})
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.EnqueueOnce(ctx); err != nil {
				s.observer.LogError(ctx, "scheduled sync enqueue failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// EnqueueOnce pushes one incremental sync message per source.
func (s *Scheduler) EnqueueOnce(ctx context.Context) error {
	bucket := s.now().UTC().Truncate(s.interval).Unix()
	for _, source := range s.sources {
		msg, err := SyncJobMessage(source, syncengine.Request{Mode: string(core.SyncModeIncremental)})
		if err != nil {
			return err
		}
		msg.IdempotencyKey = fmt.Sprintf("%s|incremental|%d", source, bucket)
		if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
			return err
		}
		s.observer.LogInfo(ctx, "scheduled incremental sync", map[string]any{
			"source": source,
			"job_id": msg.JobID,
		})
	}
	return nil
}
