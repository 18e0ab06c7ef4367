package sqlstore

import "github.com/ohjayaxel/syncengine/core"

var (
	_ core.ConnectionStore        = (*ConnectionStore)(nil)
	_ core.OrderStore             = (*OrderStore)(nil)
	_ core.AdsPerformanceStore    = (*AdsPerformanceStore)(nil)
	_ core.CustomerLedgerStore    = (*CustomerLedgerStore)(nil)
	_ core.DailyKPIStore          = (*DailyKPIStore)(nil)
	_ core.DailySalesStore        = (*DailySalesStore)(nil)
	_ core.SyncRunStore           = (*SyncRunStore)(nil)
	_ core.GeoTargetStore         = (*GeoTargetStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
