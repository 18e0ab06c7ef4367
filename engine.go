package syncengine

import (
	"context"
	"net/http"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	"github.com/ohjayaxel/syncengine/adapters/gocommand"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/ohjayaxel/syncengine/inbound"
	"github.com/ohjayaxel/syncengine/security"
	enginesync "github.com/ohjayaxel/syncengine/sync"
)

// Engine is the composed runtime: resolved config, stores, strategy registry,
// orchestrator, and the command/query facade. It satisfies the SyncService
// surface consumed by the trigger packages.
type Engine struct {
	service      *core.Service
	observer     *core.Observer
	jobLog       *core.JobLog
	orchestrator *enginesync.Orchestrator
	facade       *Facade
	server       *inbound.Server
}

// NewEngine builds the full runtime from configuration. Stores must be
// supplied through WithStores or WithRepositoryFactory; a secret provider is
// derived from the configured encryption keys when none is given.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	service, err := core.NewService(cfg, opts...)
	if err != nil {
		return nil, err
	}
	deps := service.Dependencies()
	resolved := service.Config()

	stores := deps.Stores
	if stores == nil {
		return nil, core.ConfigError("syncengine: a store provider is required")
	}

	vault := deps.SecretProvider
	if vault == nil {
		if len(resolved.Security.EncryptionKeys) == 0 {
			return nil, core.ConfigError("syncengine: encryption keys or a secret provider are required")
		}
		vault, err = security.NewMultiKeyVault(resolved.Security.EncryptionKeys)
		if err != nil {
			return nil, service.MapError(err)
		}
	}

	observer := core.NewObserver(deps.Logger, deps.MetricsRecorder, resolved.ServiceName)

	registry := deps.Registry
	if len(registry.List()) == 0 {
		if err := RegisterBuiltinStrategies(registry, resolved, StrategyDeps{
			Stores:   stores,
			Observer: observer,
		}); err != nil {
			return nil, service.MapError(err)
		}
	}

	jobLog := core.NewJobLog(stores.SyncRunStore(), deps.Clock)

	orchestratorOpts := []enginesync.Option{enginesync.WithClock(deps.Clock)}
	if deps.TokenRefresher != nil {
		orchestratorOpts = append(orchestratorOpts, enginesync.WithTokenRefresher(deps.TokenRefresher))
	}
	orchestrator, err := enginesync.NewOrchestrator(
		registry,
		stores.ConnectionStore(),
		vault,
		deps.ConnectionLocker,
		jobLog,
		observer,
		resolved.Sync,
		orchestratorOpts...,
	)
	if err != nil {
		return nil, service.MapError(err)
	}

	facade, err := NewFacade(orchestrator, jobLog, stores)
	if err != nil {
		return nil, service.MapError(err)
	}

	server, err := inbound.NewServer(inbound.Deps{
		Sync:  orchestrator,
		Runs:  stores.SyncRunStore(),
		KPIs:  stores.DailyKPIStore(),
		Sales: stores.DailySalesStore(),
	}, resolved.HTTP, observer)
	if err != nil {
		return nil, service.MapError(err)
	}

	return &Engine{
		service:      service,
		observer:     observer,
		jobLog:       jobLog,
		orchestrator: orchestrator,
		facade:       facade,
		server:       server,
	}, nil
}

// SyncProvider delegates to the orchestrator so the engine itself can serve
// as the SyncService for queue consumers and tests.
func (e *Engine) SyncProvider(ctx context.Context, source string, req enginesync.Request) (enginesync.Response, error) {
	if e == nil || e.orchestrator == nil {
		return enginesync.Response{}, core.ConfigError("syncengine: engine is not initialized")
	}
	return e.orchestrator.SyncProvider(ctx, source, req)
}

func (e *Engine) Service() *core.Service {
	if e == nil {
		return nil
	}
	return e.service
}

func (e *Engine) Observer() *core.Observer {
	if e == nil {
		return nil
	}
	return e.observer
}

func (e *Engine) JobLog() *core.JobLog {
	if e == nil {
		return nil
	}
	return e.jobLog
}

func (e *Engine) Orchestrator() *enginesync.Orchestrator {
	if e == nil {
		return nil
	}
	return e.orchestrator
}

func (e *Engine) Facade() *Facade {
	if e == nil {
		return nil
	}
	return e.facade
}

// HTTPHandler returns the inbound trigger router.
func (e *Engine) HTTPHandler() http.Handler {
	if e == nil || e.server == nil {
		return nil
	}
	return e.server.Router()
}

// RegisterHandlers registers and subscribes the facade's commands and queries
// on a go-command registry adapter.
func (e *Engine) RegisterHandlers(adapter *gocommand.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	if e == nil || e.facade == nil {
		return nil, core.ConfigError("syncengine: engine is not initialized")
	}
	if adapter == nil {
		return nil, core.ConfigError("syncengine: registry adapter is required")
	}

	subscriptions := make([]commanddispatcher.Subscription, 0, 6)

	shopifySub, err := gocommand.RegisterAndSubscribe(adapter, e.facade.Commands().SyncShopify)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, shopifySub)

	googleSub, err := gocommand.RegisterAndSubscribe(adapter, e.facade.Commands().SyncGoogleAds)
	if err != nil {
		return unsubscribeAll(subscriptions, err)
	}
	subscriptions = append(subscriptions, googleSub)

	sweepSub, err := gocommand.RegisterAndSubscribe(adapter, e.facade.Commands().SweepSyncRuns)
	if err != nil {
		return unsubscribeAll(subscriptions, err)
	}
	subscriptions = append(subscriptions, sweepSub)

	kpiSub, err := gocommand.RegisterAndSubscribeQuery(adapter, e.facade.Queries().DailyKPIRange)
	if err != nil {
		return unsubscribeAll(subscriptions, err)
	}
	subscriptions = append(subscriptions, kpiSub)

	salesSub, err := gocommand.RegisterAndSubscribeQuery(adapter, e.facade.Queries().DailySalesRange)
	if err != nil {
		return unsubscribeAll(subscriptions, err)
	}
	subscriptions = append(subscriptions, salesSub)

	historySub, err := gocommand.RegisterAndSubscribeQuery(adapter, e.facade.Queries().SyncRunHistory)
	if err != nil {
		return unsubscribeAll(subscriptions, err)
	}
	subscriptions = append(subscriptions, historySub)

	return subscriptions, nil
}

func unsubscribeAll(subscriptions []commanddispatcher.Subscription, err error) ([]commanddispatcher.Subscription, error) {
	for _, sub := range subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	return nil, err
}
