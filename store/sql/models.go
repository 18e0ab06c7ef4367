package sqlstore

import (
	"time"

	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:sync_connections,alias:sc"`

	ID                    string            `bun:"id,pk"`
	TenantID              string            `bun:"tenant_id,notnull"`
	ProviderID            string            `bun:"provider_id,notnull"`
	Status                string            `bun:"status,notnull"`
	EncryptedAccessToken  []byte            `bun:"encrypted_access_token"`
	EncryptedRefreshToken []byte            `bun:"encrypted_refresh_token"`
	TokenExpiresAt        *time.Time        `bun:"token_expires_at,nullzero"`
	Progress              core.SyncProgress `bun:"progress,type:jsonb,notnull"`
	LastSyncedAt          *time.Time        `bun:"last_synced_at,nullzero"`
	CreatedAt             time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// orderRecord keys days as formatted strings so day filters compare the same
// way on Postgres and SQLite.
type orderRecord struct {
	bun.BaseModel `bun:"table:commerce_orders,alias:co"`

	ID                 string    `bun:"id,pk"`
	TenantID           string    `bun:"tenant_id,notnull"`
	ProviderID         string    `bun:"provider_id,notnull"`
	ExternalID         string    `bun:"external_id,notnull"`
	Name               string    `bun:"name"`
	FinancialStatus    string    `bun:"financial_status,notnull"`
	CustomerExternalID string    `bun:"customer_external_id"`
	ProcessedAt        time.Time `bun:"processed_at,nullzero"`
	Day                string    `bun:"day"`
	Currency           string    `bun:"currency"`
	GrossSales         float64   `bun:"gross_sales,notnull"`
	Discounts          float64   `bun:"discounts,notnull"`
	Returns            float64   `bun:"returns,notnull"`
	NetSales           float64   `bun:"net_sales,notnull"`
	Taxes              float64   `bun:"taxes,notnull"`
	Shipping           float64   `bun:"shipping,notnull"`
	TotalPrice         float64   `bun:"total_price,notnull"`
	IsFirstOrder       bool      `bun:"is_first_order,notnull"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type refundSliceRecord struct {
	bun.BaseModel `bun:"table:commerce_refund_slices,alias:crs"`

	ID               string    `bun:"id,pk"`
	TenantID         string    `bun:"tenant_id,notnull"`
	ProviderID       string    `bun:"provider_id,notnull"`
	OrderExternalID  string    `bun:"order_external_id,notnull"`
	RefundExternalID string    `bun:"refund_external_id,notnull"`
	Day              string    `bun:"day,notnull"`
	Amount           float64   `bun:"amount,notnull"`
	TaxAmount        float64   `bun:"tax_amount,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type adsPerformanceRecord struct {
	bun.BaseModel `bun:"table:ads_performance,alias:ap"`

	ID                 string    `bun:"id,pk"`
	TenantID           string    `bun:"tenant_id,notnull"`
	ProviderID         string    `bun:"provider_id,notnull"`
	Day                string    `bun:"day,notnull"`
	CampaignID         string    `bun:"campaign_id,notnull"`
	CampaignName       string    `bun:"campaign_name"`
	AdGroupID          string    `bun:"ad_group_id,notnull"`
	AdGroupName        string    `bun:"ad_group_name"`
	CountryCriterionID int64     `bun:"country_criterion_id,notnull"`
	CountryCode        string    `bun:"country_code"`
	Spend              float64   `bun:"spend,notnull"`
	Clicks             int64     `bun:"clicks,notnull"`
	Impressions        int64     `bun:"impressions,notnull"`
	Conversions        float64   `bun:"conversions,notnull"`
	ConversionValue    float64   `bun:"conversion_value,notnull"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// customerLedgerRecord keeps the table name as its alias so the MIN-merge
// upsert can qualify target columns the same way on Postgres and SQLite.
type customerLedgerRecord struct {
	bun.BaseModel `bun:"table:customer_ledger,alias:customer_ledger"`

	ID                 string    `bun:"id,pk"`
	TenantID           string    `bun:"tenant_id,notnull"`
	CustomerExternalID string    `bun:"customer_external_id,notnull"`
	FirstOrderAt       time.Time `bun:"first_order_at,notnull"`
	FirstOrderID       string    `bun:"first_order_id,notnull"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// dailyKPIRecord stores ratio columns as pointers: NULL means the
// denominator was zero or absent, which is distinct from a computed zero.
type dailyKPIRecord struct {
	bun.BaseModel `bun:"table:daily_kpis,alias:dk"`

	ID          string    `bun:"id,pk"`
	TenantID    string    `bun:"tenant_id,notnull"`
	Day         string    `bun:"day,notnull"`
	Source      string    `bun:"source,notnull"`
	Spend       float64   `bun:"spend,notnull"`
	GrossSales  float64   `bun:"gross_sales,notnull"`
	NetSales    float64   `bun:"net_sales,notnull"`
	Revenue     float64   `bun:"revenue,notnull"`
	Orders      int       `bun:"orders,notnull"`
	Conversions float64   `bun:"conversions,notnull"`
	ROAS        *float64  `bun:"roas"`
	COS         *float64  `bun:"cos"`
	AOV         *float64  `bun:"aov"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type dailySalesRecord struct {
	bun.BaseModel `bun:"table:daily_sales,alias:ds"`

	ID              string    `bun:"id,pk"`
	TenantID        string    `bun:"tenant_id,notnull"`
	Day             string    `bun:"day,notnull"`
	GrossSales      float64   `bun:"gross_sales,notnull"`
	Discounts       float64   `bun:"discounts,notnull"`
	Returns         float64   `bun:"returns,notnull"`
	NetSales        float64   `bun:"net_sales,notnull"`
	Taxes           float64   `bun:"taxes,notnull"`
	Shipping        float64   `bun:"shipping,notnull"`
	Revenue         float64   `bun:"revenue,notnull"`
	Orders          int       `bun:"orders,notnull"`
	FirstTimeOrders int       `bun:"first_time_orders,notnull"`
	ReturningOrders int       `bun:"returning_orders,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncRunRecord struct {
	bun.BaseModel `bun:"table:sync_runs,alias:sr"`

	ID            string         `bun:"id,pk"`
	TenantID      string         `bun:"tenant_id,notnull"`
	Source        string         `bun:"source,notnull"`
	Status        string         `bun:"status,notnull"`
	StartedAt     time.Time      `bun:"started_at,notnull"`
	FinishedAt    *time.Time     `bun:"finished_at,nullzero"`
	Error         string         `bun:"error"`
	InsertedCount int            `bun:"inserted_count,notnull"`
	Metadata      map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type geoTargetRecord struct {
	bun.BaseModel `bun:"table:geo_targets,alias:gt"`

	CriterionID int64     `bun:"criterion_id,pk"`
	CountryCode string    `bun:"country_code,notnull"`
	Name        string    `bun:"name"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
