package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSyncMode             = errors.New("core: invalid sync mode")
	ErrInvalidSyncRunTransition    = errors.New("core: invalid sync run status transition")
	ErrInvalidSyncWindow           = errors.New("core: invalid sync window")
	ErrConnectionNotFound          = errors.New("core: connection not found")
	ErrSyncRunNotFound             = errors.New("core: sync run not found")
	ErrGeoTargetNotFound           = errors.New("core: geo target not found")
	ErrSourceNotRegistered         = errors.New("core: source not registered")
	ErrInvalidConnectionStatus     = errors.New("core: invalid connection status")
	ErrLedgerCustomerNotClassified = errors.New("core: ledger entry missing for classified customer")
)

const DayLayout = "2006-01-02"

// DayOf truncates an instant to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDay(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidSyncWindow)
	}
	day, err := time.ParseInLocation(DayLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a valid date", ErrInvalidSyncWindow, trimmed)
	}
	return day, nil
}

func FormatDay(t time.Time) string {
	return DayOf(t).Format(DayLayout)
}

type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// SyncProgress is the typed per-connection cursor state persisted as a
// single versioned document. Version guards forward-compatible decoding.
type SyncProgress struct {
	Version           int        `json:"version"`
	SyncStartDate     string     `json:"sync_start_date,omitempty"`
	BackfillSince     string     `json:"backfill_since,omitempty"`
	BackfillCursor    string     `json:"backfill_cursor,omitempty"`
	LastSyncDay       string     `json:"last_sync_day,omitempty"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	ExternalAccountID string     `json:"external_account_id,omitempty"`
	LastRunSummary    string     `json:"last_run_summary,omitempty"`
}

const SyncProgressVersion = 1

// Connection binds a tenant to a provider account. The engine mutates only
// progress and token fields; status is owned by the admin surface.
type Connection struct {
	ID                    string
	TenantID              string
	ProviderID            string
	Status                ConnectionStatus
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenExpiresAt        *time.Time
	Progress              SyncProgress
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (c Connection) Connected() bool {
	return c.Status == ConnectionStatusConnected
}

type SyncMode string

const (
	SyncModeExplicit    SyncMode = "explicit"
	SyncModeIncremental SyncMode = "incremental"
	SyncModeBackfill    SyncMode = "backfill"
)

func ParseSyncMode(value string) (SyncMode, error) {
	switch SyncMode(strings.TrimSpace(strings.ToLower(value))) {
	case SyncModeExplicit:
		return SyncModeExplicit, nil
	case SyncModeIncremental:
		return SyncModeIncremental, nil
	case SyncModeBackfill:
		return SyncModeBackfill, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSyncMode, value)
	}
}

// Window is an inclusive UTC day range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Days() []time.Time {
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return nil
	}
	days := make([]time.Time, 0, int(w.End.Sub(w.Start).Hours()/24)+1)
	for day := DayOf(w.Start); !day.After(DayOf(w.End)); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

func (w Window) SpanDays() int {
	return len(w.Days())
}

// CommerceOrder is a canonical order detail row. Monetary fields are in the
// shop currency and tax-exclusive unless named otherwise. Orders outside the
// countable financial statuses persist with zeroed derived fields.
type CommerceOrder struct {
	TenantID           string
	ProviderID         string
	ExternalID         string
	Name               string
	FinancialStatus    string
	CustomerExternalID string
	ProcessedAt        time.Time
	Currency           string
	GrossSales         float64
	Discounts          float64
	Returns            float64
	NetSales           float64
	Taxes              float64
	Shipping           float64
	TotalPrice         float64
	IsFirstOrder       bool
}

var countableFinancialStatuses = map[string]struct{}{
	"paid":               {},
	"partially_paid":     {},
	"partially_refunded": {},
	"refunded":           {},
}

// Countable reports whether the order participates in sales aggregation.
func (o CommerceOrder) Countable() bool {
	_, ok := countableFinancialStatuses[strings.TrimSpace(strings.ToLower(o.FinancialStatus))]
	return ok
}

// RefundSlice attributes a refund amount to the refund's own processed day,
// which may differ from the order day.
type RefundSlice struct {
	TenantID         string
	ProviderID       string
	OrderExternalID  string
	RefundExternalID string
	Day              time.Time
	Amount           float64
	TaxAmount        float64
}

// AdsPerformanceRow is a canonical ads detail row keyed by
// (date, campaign, ad group, country).
type AdsPerformanceRow struct {
	TenantID           string
	ProviderID         string
	Day                time.Time
	CampaignID         string
	CampaignName       string
	AdGroupID          string
	AdGroupName        string
	CountryCriterionID int64
	CountryCode        string
	Spend              float64
	Clicks             int64
	Impressions        int64
	Conversions        float64
	ConversionValue    float64
}

// CustomerLedgerEntry records the earliest known order per customer.
type CustomerLedgerEntry struct {
	TenantID           string
	CustomerExternalID string
	FirstOrderAt       time.Time
	FirstOrderID       string
}

// Earlier reports whether e wins a MIN-merge against other: strictly earlier
// timestamp, or equal timestamp with the lexicographically smaller order id.
func (e CustomerLedgerEntry) Earlier(other CustomerLedgerEntry) bool {
	if e.FirstOrderAt.Before(other.FirstOrderAt) {
		return true
	}
	if e.FirstOrderAt.Equal(other.FirstOrderAt) {
		return e.FirstOrderID < other.FirstOrderID
	}
	return false
}

// DailyKPI is a fully recomputed daily aggregate per (tenant, day, source).
// Ratio pointers are nil when the denominator is zero or absent.
type DailyKPI struct {
	TenantID    string
	Day         time.Time
	Source      string
	Spend       float64
	GrossSales  float64
	NetSales    float64
	Revenue     float64
	Orders      int
	Conversions float64
	ROAS        *float64
	COS         *float64
	AOV         *float64
}

// DailySales is the commerce canonical daily summary.
type DailySales struct {
	TenantID        string
	Day             time.Time
	GrossSales      float64
	Discounts       float64
	Returns         float64
	NetSales        float64
	Taxes           float64
	Shipping        float64
	Revenue         float64
	Orders          int
	FirstTimeOrders int
	ReturningOrders int
}

type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusSucceeded SyncRunStatus = "succeeded"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// SyncRun is one job-log entry. Terminal entries are immutable; a stalled
// running entry is force-failed by the sweep.
type SyncRun struct {
	ID            string
	TenantID      string
	Source        string
	Status        SyncRunStatus
	StartedAt     time.Time
	FinishedAt    *time.Time
	Error         string
	InsertedCount int
	Metadata      map[string]any
}

func (r *SyncRun) TransitionTo(status SyncRunStatus, now time.Time) error {
	if r == nil {
		return nil
	}
	if r.Status == status {
		return nil
	}
	if !syncRunTransitionAllowed(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSyncRunTransition, r.Status, status)
	}
	r.Status = status
	if status == SyncRunStatusSucceeded || status == SyncRunStatusFailed {
		finished := now.UTC()
		r.FinishedAt = &finished
	}
	return nil
}

func syncRunTransitionAllowed(current, next SyncRunStatus) bool {
	allowed := map[SyncRunStatus]map[SyncRunStatus]struct{}{
		SyncRunStatusRunning: {
			SyncRunStatusSucceeded: {},
			SyncRunStatusFailed:    {},
		},
		SyncRunStatusSucceeded: {},
		SyncRunStatusFailed:    {},
	}
	_, ok := allowed[current][next]
	return ok
}

// GeoTarget maps an ads geographic criterion id to an ISO country code.
type GeoTarget struct {
	CriterionID int64
	CountryCode string
	Name        string
}
