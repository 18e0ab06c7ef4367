package syncengine

import (
	"fmt"

	enginecommand "github.com/ohjayaxel/syncengine/command"
	"github.com/ohjayaxel/syncengine/core"
	enginequery "github.com/ohjayaxel/syncengine/query"
)

// SyncService is the orchestration surface the command and query wrappers
// delegate to.
type SyncService = enginecommand.SyncService

type Commands struct {
	SyncShopify   *enginecommand.SyncShopifyCommand
	SyncGoogleAds *enginecommand.SyncGoogleAdsCommand
	SweepSyncRuns *enginecommand.SweepSyncRunsCommand
}

type Queries struct {
	DailyKPIRange   *enginequery.DailyKPIRangeQuery
	DailySalesRange *enginequery.DailySalesRangeQuery
	SyncRunHistory  *enginequery.SyncRunHistoryQuery
}

// Facade bundles the message-based entry points around one orchestrator and
// one store provider, ready for registration with a command bus.
type Facade struct {
	service  SyncService
	commands Commands
	queries  Queries
}

func NewFacade(service SyncService, sweeper enginecommand.RunSweeper, stores core.StoreProvider) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("syncengine: sync service is required")
	}
	if stores == nil {
		return nil, fmt.Errorf("syncengine: store provider is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SyncShopify:   enginecommand.NewSyncShopifyCommand(service),
		SyncGoogleAds: enginecommand.NewSyncGoogleAdsCommand(service),
		SweepSyncRuns: enginecommand.NewSweepSyncRunsCommand(sweeper),
	}
	facade.queries = Queries{
		DailyKPIRange:   enginequery.NewDailyKPIRangeQuery(stores.DailyKPIStore()),
		DailySalesRange: enginequery.NewDailySalesRangeQuery(stores.DailySalesStore()),
		SyncRunHistory:  enginequery.NewSyncRunHistoryQuery(stores.SyncRunStore()),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() SyncService {
	if f == nil {
		return nil
	}
	return f.service
}
