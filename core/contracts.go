package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SecretProvider decrypts stored token blobs. Encrypt exists for seeding and
// key rotation; the engine itself only decrypts during sync.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// TokenGrant is the result of a provider token refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// TokenRefresher exchanges a refresh token for a fresh grant. The OAuth
// authorization-code exchange lives outside the engine; this is the only
// credential operation the sync path performs.
type TokenRefresher interface {
	Refresh(ctx context.Context, providerID string, refreshToken string) (TokenGrant, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Idempotency          string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// SyncInput carries everything a strategy needs for one tenant run. The
// orchestrator owns locking, credentials, window resolution, and the job log;
// the strategy owns fetch, transform, classify, persist, and aggregate.
type SyncInput struct {
	Connection  Connection
	AccessToken string
	Window      Window
	Mode        SyncMode
	OrderIDs    []string
}

type SyncOutput struct {
	Inserted     int
	AffectedDays []time.Time
	Warnings     []string
	Metadata     map[string]any
}

// SyncStrategy is the extension seam for providers.
type SyncStrategy interface {
	Source() string
	Sync(ctx context.Context, in SyncInput) (SyncOutput, error)
}

type Registry interface {
	Register(strategy SyncStrategy) error
	Get(source string) (SyncStrategy, bool)
	List() []SyncStrategy
}

type ConnectionStore interface {
	Create(ctx context.Context, conn Connection) (Connection, error)
	GetByTenant(ctx context.Context, tenantID string, providerID string) (Connection, error)
	ListConnected(ctx context.Context, providerID string, limit int) ([]Connection, error)
	UpdateProgress(ctx context.Context, id string, progress SyncProgress, syncedAt time.Time) error
	UpdateTokens(ctx context.Context, id string, access []byte, refresh []byte, expiresAt *time.Time) error
}

type OrderStore interface {
	UpsertOrders(ctx context.Context, orders []CommerceOrder) (int, error)
	UpsertRefundSlices(ctx context.Context, slices []RefundSlice) (int, error)
	ListByDays(ctx context.Context, tenantID string, days []time.Time) ([]CommerceOrder, error)
	ListRefundSlicesByDays(ctx context.Context, tenantID string, days []time.Time) ([]RefundSlice, error)
}

type AdsPerformanceStore interface {
	UpsertRows(ctx context.Context, rows []AdsPerformanceRow) (int, error)
	ListByDays(ctx context.Context, tenantID string, days []time.Time) ([]AdsPerformanceRow, error)
}

type CustomerLedgerStore interface {
	MergeFirstOrders(ctx context.Context, entries []CustomerLedgerEntry) error
	GetByCustomers(ctx context.Context, tenantID string, customerIDs []string) (map[string]CustomerLedgerEntry, error)
}

type DailyKPIStore interface {
	ReplaceDays(ctx context.Context, tenantID string, source string, days []time.Time, rows []DailyKPI) error
	ListRange(ctx context.Context, tenantID string, from time.Time, to time.Time, source string) ([]DailyKPI, error)
}

type DailySalesStore interface {
	ReplaceDays(ctx context.Context, tenantID string, days []time.Time, rows []DailySales) error
	ListRange(ctx context.Context, tenantID string, from time.Time, to time.Time) ([]DailySales, error)
}

type SyncRunStore interface {
	Begin(ctx context.Context, run SyncRun) (SyncRun, error)
	Update(ctx context.Context, run SyncRun) (SyncRun, error)
	Get(ctx context.Context, id string) (SyncRun, error)
	SweepStalled(ctx context.Context, cutoff time.Time, reason string) (int, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]SyncRun, error)
}

type GeoTargetStore interface {
	Get(ctx context.Context, criterionID int64) (GeoTarget, error)
	Upsert(ctx context.Context, targets []GeoTarget) error
}

type StoreProvider interface {
	ConnectionStore() ConnectionStore
	OrderStore() OrderStore
	AdsPerformanceStore() AdsPerformanceStore
	CustomerLedgerStore() CustomerLedgerStore
	DailyKPIStore() DailyKPIStore
	DailySalesStore() DailySalesStore
	SyncRunStore() SyncRunStore
	GeoTargetStore() GeoTargetStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}
