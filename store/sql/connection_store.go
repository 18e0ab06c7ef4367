package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *ConnectionStore) Create(ctx context.Context, conn core.Connection) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	conn.TenantID = strings.TrimSpace(conn.TenantID)
	conn.ProviderID = strings.TrimSpace(conn.ProviderID)
	if conn.TenantID == "" || conn.ProviderID == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: tenant id and provider id are required")
	}
	if strings.TrimSpace(string(conn.Status)) == "" {
		conn.Status = core.ConnectionStatusDisconnected
	}
	if conn.Progress.Version == 0 {
		conn.Progress.Version = core.SyncProgressVersion
	}

	record := newConnectionRecord(conn, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Connection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) GetByTenant(ctx context.Context, tenantID string, providerID string) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectBy("provider_id", "=", strings.TrimSpace(providerID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Connection{}, err
	}
	if len(records) == 0 {
		return core.Connection{}, fmt.Errorf("%w: tenant %q provider %q", core.ErrConnectionNotFound, tenantID, providerID)
	}
	return records[0].toDomain(), nil
}

// ListConnected returns connected tenants ordered least-recently-synced
// first; never-synced connections sort ahead of everything else.
func (s *ConnectionStore) ListConnected(ctx context.Context, providerID string, limit int) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("status", "=", string(core.ConnectionStatusConnected)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.last_synced_at IS NOT NULL, ?TableAlias.last_synced_at ASC")
		}),
	}
	if trimmed := strings.TrimSpace(providerID); trimmed != "" {
		criteria = append(criteria, repository.SelectBy("provider_id", "=", trimmed))
	}
	if limit > 0 {
		criteria = append(criteria, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}

	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConnectionStore) UpdateProgress(ctx context.Context, id string, progress core.SyncProgress, syncedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	if progress.Version == 0 {
		progress.Version = core.SyncProgressVersion
	}
	now := time.Now().UTC()
	syncedAtUTC := syncedAt.UTC()

	res, err := s.db.NewUpdate().
		Model((*connectionRecord)(nil)).
		Set("progress = ?", progress).
		Set("last_synced_at = ?", syncedAtUTC).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", trimmedID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffectedConnection(res, trimmedID)
}

func (s *ConnectionStore) UpdateTokens(ctx context.Context, id string, access []byte, refresh []byte, expiresAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	now := time.Now().UTC()

	query := s.db.NewUpdate().
		Model((*connectionRecord)(nil)).
		Set("encrypted_access_token = ?", access).
		Set("encrypted_refresh_token = ?", refresh).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", trimmedID)
	if expiresAt != nil {
		query = query.Set("token_expires_at = ?", expiresAt.UTC())
	} else {
		query = query.Set("token_expires_at = NULL")
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffectedConnection(res, trimmedID)
}

func requireAffectedConnection(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %q", core.ErrConnectionNotFound, id)
	}
	return nil
}
