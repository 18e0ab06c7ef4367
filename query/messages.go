package query

import (
	"strings"

	"github.com/ohjayaxel/syncengine/core"
)

const (
	TypeDailyKPIRange   = "syncengine.query.daily_kpis.range"
	TypeDailySalesRange = "syncengine.query.daily_sales.range"
	TypeSyncRunHistory  = "syncengine.query.sync_runs.history"
)

// DailyKPIRangeMessage reads aggregated KPIs for one tenant over an
// inclusive day range, optionally filtered to a single source.
type DailyKPIRangeMessage struct {
	TenantID string
	DateFrom string
	DateTo   string
	Source   string
}

func (DailyKPIRangeMessage) Type() string { return TypeDailyKPIRange }

func (m DailyKPIRangeMessage) Validate() error {
	return validateTenantRange(m.TenantID, m.DateFrom, m.DateTo)
}

type DailySalesRangeMessage struct {
	TenantID string
	DateFrom string
	DateTo   string
}

func (DailySalesRangeMessage) Type() string { return TypeDailySalesRange }

func (m DailySalesRangeMessage) Validate() error {
	return validateTenantRange(m.TenantID, m.DateFrom, m.DateTo)
}

type SyncRunHistoryMessage struct {
	TenantID string
	Limit    int
}

func (SyncRunHistoryMessage) Type() string { return TypeSyncRunHistory }

func (m SyncRunHistoryMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenantId", "tenant id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "must be zero or positive")
	}
	return nil
}

func validateTenantRange(tenantID string, dateFrom string, dateTo string) error {
	if strings.TrimSpace(tenantID) == "" {
		return queryValidationError("tenantId", "tenant id is required")
	}
	start, err := core.ParseDay(dateFrom)
	if err != nil {
		return queryWrapValidation(err, "query: invalid dateFrom")
	}
	end, err := core.ParseDay(dateTo)
	if err != nil {
		return queryWrapValidation(err, "query: invalid dateTo")
	}
	if end.Before(start) {
		return queryValidationError("dateTo", "must not be before dateFrom")
	}
	return nil
}
