package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	syncengine "github.com/ohjayaxel/syncengine/sync"
)

// SyncService is the orchestrator surface the trigger commands delegate to.
type SyncService interface {
	SyncProvider(ctx context.Context, source string, req syncengine.Request) (syncengine.Response, error)
}

// RunSweeper force-fails stalled job-log entries; core.JobLog satisfies it.
type RunSweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

type SyncShopifyCommand struct {
	service SyncService
}

func NewSyncShopifyCommand(service SyncService) *SyncShopifyCommand {
	return &SyncShopifyCommand{service: service}
}

func (c *SyncShopifyCommand) Execute(ctx context.Context, msg SyncShopifyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	out, err := c.service.SyncProvider(ctx, "shopify", syncengine.Request{
		TenantID: msg.TenantID,
		Mode:     msg.Mode,
		DateFrom: msg.DateFrom,
		DateTo:   msg.DateTo,
		OrderIDs: msg.OrderIDs,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SyncGoogleAdsCommand struct {
	service SyncService
}

func NewSyncGoogleAdsCommand(service SyncService) *SyncGoogleAdsCommand {
	return &SyncGoogleAdsCommand{service: service}
}

func (c *SyncGoogleAdsCommand) Execute(ctx context.Context, msg SyncGoogleAdsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	out, err := c.service.SyncProvider(ctx, "googleads", syncengine.Request{
		TenantID: msg.TenantID,
		Mode:     msg.Mode,
		DateFrom: msg.DateFrom,
		DateTo:   msg.DateTo,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// SweepResult reports how many stalled entries one sweep force-failed.
type SweepResult struct {
	Swept int
}

type SweepSyncRunsCommand struct {
	sweeper RunSweeper
	clock   func() time.Time
}

func NewSweepSyncRunsCommand(sweeper RunSweeper) *SweepSyncRunsCommand {
	return &SweepSyncRunsCommand{
		sweeper: sweeper,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

const defaultSweepAge = 30 * time.Minute

func (c *SweepSyncRunsCommand) Execute(ctx context.Context, msg SweepSyncRunsMessage) error {
	if c == nil || c.sweeper == nil {
		return commandDependencyError("command: run sweeper is required")
	}
	age := msg.OlderThan
	if age <= 0 {
		age = defaultSweepAge
	}
	swept, err := c.sweeper.Sweep(ctx, c.clock().Add(-age))
	if err != nil {
		return err
	}
	storeResult(ctx, SweepResult{Swept: swept})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
