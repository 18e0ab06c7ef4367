package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/ohjayaxel/syncengine/core"
	syncengine "github.com/ohjayaxel/syncengine/sync"
)

const (
	JobIDSyncShopify   = "syncengine.sync.shopify"
	JobIDSyncGoogleAds = "syncengine.sync.googleads"
	JobIDSweepSyncRuns = "syncengine.sync_runs.sweep"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps the engine's job contract onto go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message back into the engine's contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// SyncJobMessage builds the queue message for one async sync request. The
// idempotency key collapses duplicate triggers for the same source, tenant,
// and window that land before the first one is consumed.
func SyncJobMessage(source string, req syncengine.Request) (*core.JobExecutionMessage, error) {
	jobID, err := jobIDForSource(source)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"source": source,
	}
	if req.TenantID != "" {
		params["tenant_id"] = req.TenantID
	}
	if req.Mode != "" {
		params["mode"] = req.Mode
	}
	if req.DateFrom != "" {
		params["date_from"] = req.DateFrom
	}
	if req.DateTo != "" {
		params["date_to"] = req.DateTo
	}
	if len(req.OrderIDs) > 0 {
		ids := make([]any, 0, len(req.OrderIDs))
		for _, id := range req.OrderIDs {
			ids = append(ids, id)
		}
		params["order_ids"] = ids
	}
	return &core.JobExecutionMessage{
		JobID:          jobID,
		Parameters:     params,
		IdempotencyKey: strings.Join([]string{source, req.TenantID, req.Mode, req.DateFrom, req.DateTo}, "|"),
		DedupPolicy:    "drop",
	}, nil
}

// SyncRequestFromMessage is the inverse of SyncJobMessage.
func SyncRequestFromMessage(msg *core.JobExecutionMessage) (string, syncengine.Request, error) {
	if msg == nil {
		return "", syncengine.Request{}, fmt.Errorf("gojob: execution message is required")
	}
	source, _ := msg.Parameters["source"].(string)
	if source == "" {
		return "", syncengine.Request{}, fmt.Errorf("gojob: message %q carries no source", msg.JobID)
	}
	req := syncengine.Request{}
	req.TenantID, _ = msg.Parameters["tenant_id"].(string)
	req.Mode, _ = msg.Parameters["mode"].(string)
	req.DateFrom, _ = msg.Parameters["date_from"].(string)
	req.DateTo, _ = msg.Parameters["date_to"].(string)
	if raw, ok := msg.Parameters["order_ids"].([]any); ok {
		for _, item := range raw {
			if id, ok := item.(string); ok && id != "" {
				req.OrderIDs = append(req.OrderIDs, id)
			}
		}
	}
	return source, req, nil
}

func jobIDForSource(source string) (string, error) {
	switch source {
	case "shopify":
		return JobIDSyncShopify, nil
	case "googleads":
		return JobIDSyncGoogleAds, nil
	default:
		return "", fmt.Errorf("gojob: no job id for source %q", source)
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// ObserverWorkerHook forwards go-job worker lifecycle events into the
// engine's observability surface.
type ObserverWorkerHook struct {
	observer *core.Observer
}

func NewObserverWorkerHook(observer *core.Observer) *ObserverWorkerHook {
	return &ObserverWorkerHook{observer: observer}
}

func (h *ObserverWorkerHook) OnStart(ctx context.Context, event worker.Event) {
	h.observer.RecordCounter(ctx, "job.start", 1, eventTags(event))
}

func (h *ObserverWorkerHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.observer.RecordCounter(ctx, "job.success", 1, eventTags(event))
	h.observer.RecordHistogram(ctx, "job.duration_ms", float64(event.Duration.Milliseconds()), eventTags(event))
}

func (h *ObserverWorkerHook) OnFailure(ctx context.Context, event worker.Event) {
	h.observer.RecordCounter(ctx, "job.failure", 1, eventTags(event))
	fields := map[string]any{"job_id": eventJobID(event), "attempt": event.Attempt}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	h.observer.LogError(ctx, "job failed", fields)
}

func (h *ObserverWorkerHook) OnRetry(ctx context.Context, event worker.Event) {
	h.observer.RecordCounter(ctx, "job.retry", 1, eventTags(event))
	h.observer.LogInfo(ctx, "job retry scheduled", map[string]any{
		"job_id":  eventJobID(event),
		"attempt": event.Attempt,
		"delay":   event.Delay.String(),
	})
}

func eventJobID(event worker.Event) string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message == nil {
		return ""
	}
	return message.JobID
}

func eventTags(event worker.Event) map[string]string {
	return map[string]string{"job_id": eventJobID(event)}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*ObserverWorkerHook)(nil)
)
