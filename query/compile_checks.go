package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/ohjayaxel/syncengine/core"
)

var (
	_ gocmd.Querier[DailyKPIRangeMessage, []core.DailyKPI]     = (*DailyKPIRangeQuery)(nil)
	_ gocmd.Querier[DailySalesRangeMessage, []core.DailySales] = (*DailySalesRangeQuery)(nil)
	_ gocmd.Querier[SyncRunHistoryMessage, []core.SyncRun]     = (*SyncRunHistoryQuery)(nil)
)
