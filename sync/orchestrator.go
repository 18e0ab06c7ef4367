package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ohjayaxel/syncengine/core"
)

// Request triggers sync work for one source. An empty TenantID selects a
// batch of the least-recently-synced connected tenants instead.
type Request struct {
	TenantID string
	Mode     string
	DateFrom string
	DateTo   string
	OrderIDs []string
}

type TenantResult struct {
	TenantID string
	RunID    string
	Status   string
	Inserted int
	Window   string
	Error    string
}

type Response struct {
	Source  string
	Results []TenantResult
}

const (
	ResultStatusSucceeded = "succeeded"
	ResultStatusFailed    = "failed"
	ResultStatusSkipped   = "skipped"
)

// Orchestrator drives one sync invocation end to end: tenant selection,
// single-flight locking, job log, credential freshness, window resolution,
// strategy execution, and cursor advance. Tenants run strictly sequentially;
// a tenant failure marks its own result and never aborts the loop.
type Orchestrator struct {
	registry    core.Registry
	connections core.ConnectionStore
	vault       core.SecretProvider
	refresher   core.TokenRefresher
	locker      core.ConnectionLocker
	jobLog      *core.JobLog
	observer    *core.Observer
	config      core.SyncConfig
	now         func() time.Time
}

type Option func(*Orchestrator)

// WithTokenRefresher enables proactive refresh for providers whose tokens
// expire. Without it, expired tokens surface as reauth errors.
func WithTokenRefresher(refresher core.TokenRefresher) Option {
	return func(o *Orchestrator) {
		o.refresher = refresher
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(
	registry core.Registry,
	connections core.ConnectionStore,
	vault core.SecretProvider,
	locker core.ConnectionLocker,
	jobLog *core.JobLog,
	observer *core.Observer,
	config core.SyncConfig,
	opts ...Option,
) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("sync: strategy registry is required")
	}
	if connections == nil {
		return nil, fmt.Errorf("sync: connection store is required")
	}
	if vault == nil {
		return nil, fmt.Errorf("sync: secret provider is required")
	}
	if locker == nil {
		locker = core.NewMemoryConnectionLocker()
	}
	if jobLog == nil {
		return nil, fmt.Errorf("sync: job log is required")
	}

	orchestrator := &Orchestrator{
		registry:    registry,
		connections: connections,
		vault:       vault,
		locker:      locker,
		jobLog:      jobLog,
		observer:    observer,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(orchestrator)
		}
	}
	return orchestrator, nil
}

// SyncProvider runs the named source for one tenant or a batch. Configuration
// and setup failures return an error before any tenant work; everything after
// that lands in per-tenant results.
func (o *Orchestrator) SyncProvider(ctx context.Context, source string, req Request) (Response, error) {
	startedAt := o.clock()
	response := Response{Source: strings.TrimSpace(source)}

	plan, err := o.plan(response.Source, req)
	if err != nil {
		return response, core.MapSyncError(err)
	}

	if swept, sweepErr := o.jobLog.Sweep(ctx, startedAt.Add(-o.stalledCutoffAge())); sweepErr != nil {
		return response, core.MapSyncError(sweepErr)
	} else if swept > 0 {
		o.observer.LogInfo(ctx, "stalled sync runs swept", map[string]any{
			"source": response.Source,
			"swept":  swept,
		})
	}

	connections, err := o.selectConnections(ctx, response.Source, req.TenantID)
	if err != nil {
		return response, core.MapSyncError(err)
	}

	for _, conn := range connections {
		result := o.syncTenant(ctx, plan, conn)
		response.Results = append(response.Results, result)
	}

	o.observer.ObserveOperation(ctx, startedAt, "provider_sync", nil, map[string]any{
		"source":  response.Source,
		"tenants": len(response.Results),
	})
	return response, nil
}

type runPlan struct {
	strategy core.SyncStrategy
	mode     core.SyncMode
	explicit *core.Window
	orderIDs []string
}

func (o *Orchestrator) plan(source string, req Request) (runPlan, error) {
	if source == "" {
		return runPlan{}, core.ConfigError("sync: source is required")
	}
	strategy, ok := o.registry.Get(source)
	if !ok {
		return runPlan{}, fmt.Errorf("%w: %q", core.ErrSourceNotRegistered, source)
	}

	mode, err := core.ParseSyncMode(req.Mode)
	if err != nil {
		return runPlan{}, err
	}

	var explicit *core.Window
	from := strings.TrimSpace(req.DateFrom)
	to := strings.TrimSpace(req.DateTo)
	if from != "" || to != "" {
		start, parseErr := core.ParseDay(from)
		if parseErr != nil {
			return runPlan{}, parseErr
		}
		end, parseErr := core.ParseDay(to)
		if parseErr != nil {
			return runPlan{}, parseErr
		}
		explicit = &core.Window{Start: start, End: end}
		if mode == "" {
			mode = core.SyncModeExplicit
		}
	}
	if mode == core.SyncModeExplicit && explicit == nil {
		return runPlan{}, fmt.Errorf("%w: explicit mode requires dateFrom and dateTo", core.ErrInvalidSyncWindow)
	}

	orderIDs := make([]string, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			orderIDs = append(orderIDs, trimmed)
		}
	}

	return runPlan{
		strategy: strategy,
		mode:     mode,
		explicit: explicit,
		orderIDs: orderIDs,
	}, nil
}

func (o *Orchestrator) selectConnections(ctx context.Context, source string, tenantID string) ([]core.Connection, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID != "" {
		conn, err := o.connections.GetByTenant(ctx, tenantID, source)
		if err != nil {
			return nil, err
		}
		if !conn.Connected() {
			return nil, fmt.Errorf("%w: tenant %q is not connected to %q", core.ErrInvalidConnectionStatus, tenantID, source)
		}
		return []core.Connection{conn}, nil
	}

	limit := o.config.BatchTenantLimit
	if limit <= 0 {
		limit = core.DefaultConfig().Sync.BatchTenantLimit
	}
	return o.connections.ListConnected(ctx, source, limit)
}

func (o *Orchestrator) syncTenant(ctx context.Context, plan runPlan, conn core.Connection) TenantResult {
	startedAt := o.clock()
	result := TenantResult{TenantID: conn.TenantID}

	handle, err := o.locker.Acquire(ctx, conn.ID, o.lockTTL())
	if err != nil {
		// Another invocation owns this connection; report without a job entry.
		result.Status = ResultStatusSkipped
		result.Error = core.MapSyncError(err).Error()
		o.observer.LogInfo(ctx, "tenant sync skipped", map[string]any{
			"tenant_id":     conn.TenantID,
			"connection_id": conn.ID,
			"source":        plan.strategy.Source(),
			"reason":        result.Error,
		})
		return result
	}
	defer func() { _ = handle.Unlock(ctx) }()

	run, err := o.jobLog.Begin(ctx, conn.TenantID, plan.strategy.Source())
	if err != nil {
		result.Status = ResultStatusFailed
		result.Error = core.MapSyncError(err).Error()
		return result
	}
	result.RunID = run.ID
	// The guard runs on the parent context: the per-tenant deadline may
	// already be spent when the body bails out.
	defer o.jobLog.GuardInterrupted(ctx, run.ID)

	tenantCtx := ctx
	if o.config.TenantTimeout > 0 {
		var cancel context.CancelFunc
		tenantCtx, cancel = context.WithTimeout(ctx, o.config.TenantTimeout)
		defer cancel()
	}

	output, window, runErr := o.runTenant(tenantCtx, plan, conn)
	if runErr != nil {
		mapped := core.MapSyncError(runErr)
		result.Status = ResultStatusFailed
		result.Error = mapped.Error()
		if _, failErr := o.jobLog.Fail(ctx, run, mapped); failErr != nil {
			o.observer.LogError(ctx, "sync run fail update lost", map[string]any{
				"tenant_id": conn.TenantID,
				"run_id":    run.ID,
				"error":     failErr.Error(),
			})
		}
		o.observer.ObserveOperation(ctx, startedAt, "tenant_sync", mapped, map[string]any{
			"tenant_id":     conn.TenantID,
			"connection_id": conn.ID,
			"source":        plan.strategy.Source(),
			"run_id":        run.ID,
		})
		return result
	}

	// Strategy metadata merges over these keys, so the window label is kept
	// in a local instead of read back from the map.
	windowLabel := core.FormatDay(window.Window.Start) + ".." + core.FormatDay(window.Window.End)
	metadata := map[string]any{
		"mode":   string(window.Mode),
		"window": windowLabel,
	}
	if len(output.Warnings) > 0 {
		metadata["warnings"] = output.Warnings
	}
	for key, value := range output.Metadata {
		metadata[key] = value
	}

	if _, err := o.jobLog.Complete(ctx, run, output.Inserted, metadata); err != nil {
		result.Status = ResultStatusFailed
		result.Error = core.MapSyncError(err).Error()
		return result
	}

	result.Status = ResultStatusSucceeded
	result.Inserted = output.Inserted
	result.Window = windowLabel
	o.observer.ObserveOperation(ctx, startedAt, "tenant_sync", nil, map[string]any{
		"tenant_id":     conn.TenantID,
		"connection_id": conn.ID,
		"source":        plan.strategy.Source(),
		"run_id":        run.ID,
		"inserted":      output.Inserted,
	})
	return result
}

func (o *Orchestrator) runTenant(ctx context.Context, plan runPlan, conn core.Connection) (core.SyncOutput, core.ResolvedWindow, error) {
	conn, accessToken, err := o.freshAccessToken(ctx, plan.strategy.Source(), conn)
	if err != nil {
		return core.SyncOutput{}, core.ResolvedWindow{}, err
	}

	now := o.clock()
	resolved, err := core.ResolveSyncWindow(conn.Progress, plan.mode, plan.explicit, now, core.WindowOptions{
		LookbackDays:    o.config.LookbackDays,
		ExplicitCapDays: o.config.ExplicitCapDays,
	})
	if err != nil {
		return core.SyncOutput{}, core.ResolvedWindow{}, err
	}

	output, err := plan.strategy.Sync(ctx, core.SyncInput{
		Connection:  conn,
		AccessToken: accessToken,
		Window:      resolved.Window,
		Mode:        resolved.Mode,
		OrderIDs:    plan.orderIDs,
	})
	if err != nil {
		return core.SyncOutput{}, resolved, err
	}

	// Cursor advance only after a fully successful run: a crashed or failed
	// run resumes from the same progress document.
	next := resolved.Next
	next.LastRunSummary = fmt.Sprintf("%s %s..%s inserted=%d",
		resolved.Mode,
		core.FormatDay(resolved.Window.Start),
		core.FormatDay(resolved.Window.End),
		output.Inserted,
	)
	if err := o.connections.UpdateProgress(ctx, conn.ID, next, now); err != nil {
		return output, resolved, core.PersistenceError(err, "sync progress update failed")
	}
	return output, resolved, nil
}

// freshAccessToken decrypts the stored token, refreshing it first when the
// expiry falls inside the lead window. A failed refresh leaves the stored
// tokens untouched and falls back to the current token.
func (o *Orchestrator) freshAccessToken(ctx context.Context, source string, conn core.Connection) (core.Connection, string, error) {
	if len(conn.EncryptedAccessToken) == 0 {
		return conn, "", core.ReauthError(fmt.Sprintf(
			"no access token stored for tenant %q; re-authenticate this connection", conn.TenantID))
	}

	now := o.clock()
	state := core.ResolveTokenState(now, conn, o.config.RefreshLeadWindow)
	if o.refresher != nil && core.ShouldRefreshToken(now, state, o.config.RefreshLeadWindow) {
		refreshed, err := o.refreshTokens(ctx, source, conn)
		if err != nil {
			o.observer.LogError(ctx, "token refresh failed, continuing with stored token", map[string]any{
				"tenant_id":     conn.TenantID,
				"connection_id": conn.ID,
				"source":        source,
				"error":         err.Error(),
			})
		} else {
			conn = refreshed
		}
	}

	plaintext, err := o.vault.Decrypt(ctx, conn.EncryptedAccessToken)
	if err != nil {
		return conn, "", err
	}
	return conn, string(plaintext), nil
}

func (o *Orchestrator) refreshTokens(ctx context.Context, source string, conn core.Connection) (core.Connection, error) {
	refreshPlain, err := o.vault.Decrypt(ctx, conn.EncryptedRefreshToken)
	if err != nil {
		return conn, err
	}
	grant, err := o.refresher.Refresh(ctx, source, string(refreshPlain))
	if err != nil {
		return conn, err
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return conn, fmt.Errorf("sync: provider returned an empty access token on refresh")
	}

	encryptedAccess, err := o.vault.Encrypt(ctx, []byte(grant.AccessToken))
	if err != nil {
		return conn, err
	}
	encryptedRefresh := conn.EncryptedRefreshToken
	if strings.TrimSpace(grant.RefreshToken) != "" {
		encryptedRefresh, err = o.vault.Encrypt(ctx, []byte(grant.RefreshToken))
		if err != nil {
			return conn, err
		}
	}

	if err := o.connections.UpdateTokens(ctx, conn.ID, encryptedAccess, encryptedRefresh, grant.ExpiresAt); err != nil {
		return conn, core.PersistenceError(err, "refreshed token persist failed")
	}

	conn.EncryptedAccessToken = encryptedAccess
	conn.EncryptedRefreshToken = encryptedRefresh
	conn.TokenExpiresAt = grant.ExpiresAt
	return conn, nil
}

func (o *Orchestrator) lockTTL() time.Duration {
	if o.config.TenantTimeout > 0 {
		return o.config.TenantTimeout
	}
	return core.DefaultConfig().Sync.TenantTimeout
}

// stalledCutoffAge keeps the sweep clear of runs that may still legitimately
// be executing inside their tenant deadline.
func (o *Orchestrator) stalledCutoffAge() time.Duration {
	return 2 * o.lockTTL()
}

func (o *Orchestrator) clock() time.Time {
	if o != nil && o.now != nil {
		return o.now().UTC()
	}
	return time.Now().UTC()
}
