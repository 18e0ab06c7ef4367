package query

import (
	"context"
	"strings"

	"github.com/ohjayaxel/syncengine/core"
)

type DailyKPIRangeQuery struct {
	kpis core.DailyKPIStore
}

func NewDailyKPIRangeQuery(kpis core.DailyKPIStore) *DailyKPIRangeQuery {
	return &DailyKPIRangeQuery{kpis: kpis}
}

func (q *DailyKPIRangeQuery) Query(ctx context.Context, msg DailyKPIRangeMessage) ([]core.DailyKPI, error) {
	if q == nil || q.kpis == nil {
		return nil, queryDependencyError("query: daily kpi store is required")
	}
	from, err := core.ParseDay(msg.DateFrom)
	if err != nil {
		return nil, queryWrapValidation(err, "query: invalid dateFrom")
	}
	to, err := core.ParseDay(msg.DateTo)
	if err != nil {
		return nil, queryWrapValidation(err, "query: invalid dateTo")
	}
	return q.kpis.ListRange(ctx, strings.TrimSpace(msg.TenantID), from, to, strings.TrimSpace(msg.Source))
}

type DailySalesRangeQuery struct {
	sales core.DailySalesStore
}

func NewDailySalesRangeQuery(sales core.DailySalesStore) *DailySalesRangeQuery {
	return &DailySalesRangeQuery{sales: sales}
}

func (q *DailySalesRangeQuery) Query(ctx context.Context, msg DailySalesRangeMessage) ([]core.DailySales, error) {
	if q == nil || q.sales == nil {
		return nil, queryDependencyError("query: daily sales store is required")
	}
	from, err := core.ParseDay(msg.DateFrom)
	if err != nil {
		return nil, queryWrapValidation(err, "query: invalid dateFrom")
	}
	to, err := core.ParseDay(msg.DateTo)
	if err != nil {
		return nil, queryWrapValidation(err, "query: invalid dateTo")
	}
	return q.sales.ListRange(ctx, strings.TrimSpace(msg.TenantID), from, to)
}

const defaultHistoryLimit = 20

type SyncRunHistoryQuery struct {
	runs core.SyncRunStore
}

func NewSyncRunHistoryQuery(runs core.SyncRunStore) *SyncRunHistoryQuery {
	return &SyncRunHistoryQuery{runs: runs}
}

func (q *SyncRunHistoryQuery) Query(ctx context.Context, msg SyncRunHistoryMessage) ([]core.SyncRun, error) {
	if q == nil || q.runs == nil {
		return nil, queryDependencyError("query: sync run store is required")
	}
	limit := msg.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return q.runs.ListByTenant(ctx, strings.TrimSpace(msg.TenantID), limit)
}
