package command

import (
	"strings"
	"time"

	"github.com/ohjayaxel/syncengine/core"
)

const (
	TypeSyncShopify   = "syncengine.command.sync.shopify"
	TypeSyncGoogleAds = "syncengine.command.sync.googleads"
	TypeSweepSyncRuns = "syncengine.command.sync_runs.sweep"
)

// SyncShopifyMessage triggers a commerce sync for one tenant or, with an
// empty TenantID, a batch of the least-recently-synced connected tenants.
type SyncShopifyMessage struct {
	TenantID string
	Mode     string
	DateFrom string
	DateTo   string
	OrderIDs []string
}

func (SyncShopifyMessage) Type() string { return TypeSyncShopify }

func (m SyncShopifyMessage) Validate() error {
	return validateSyncFields(m.Mode, m.DateFrom, m.DateTo)
}

type SyncGoogleAdsMessage struct {
	TenantID string
	Mode     string
	DateFrom string
	DateTo   string
}

func (SyncGoogleAdsMessage) Type() string { return TypeSyncGoogleAds }

func (m SyncGoogleAdsMessage) Validate() error {
	return validateSyncFields(m.Mode, m.DateFrom, m.DateTo)
}

// SweepSyncRunsMessage force-fails running job-log entries older than the
// given age. Zero falls back to the orchestrator's default cutoff.
type SweepSyncRunsMessage struct {
	OlderThan time.Duration
}

func (SweepSyncRunsMessage) Type() string { return TypeSweepSyncRuns }

func (m SweepSyncRunsMessage) Validate() error {
	if m.OlderThan < 0 {
		return commandValidationError("olderThan", "must be zero or positive")
	}
	return nil
}

func validateSyncFields(mode string, dateFrom string, dateTo string) error {
	if _, err := core.ParseSyncMode(mode); err != nil {
		return commandWrapValidation(err, "command: invalid sync mode")
	}
	from := strings.TrimSpace(dateFrom)
	to := strings.TrimSpace(dateTo)
	if (from == "") != (to == "") {
		return commandValidationError("dateFrom", "dateFrom and dateTo must be provided together")
	}
	if from != "" {
		start, err := core.ParseDay(from)
		if err != nil {
			return commandWrapValidation(err, "command: invalid dateFrom")
		}
		end, err := core.ParseDay(to)
		if err != nil {
			return commandWrapValidation(err, "command: invalid dateTo")
		}
		if end.Before(start) {
			return commandValidationError("dateTo", "must not be before dateFrom")
		}
	}
	return nil
}
