package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type SyncRunStore struct {
	db   *bun.DB
	repo repository.Repository[*syncRunRecord]
}

func NewSyncRunStore(db *bun.DB) (*SyncRunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncRunRecord](db, syncRunHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync run repository wiring: %w", err)
		}
	}
	return &SyncRunStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SyncRunStore) Begin(ctx context.Context, run core.SyncRun) (core.SyncRun, error) {
	if s == nil || s.db == nil {
		return core.SyncRun{}, fmt.Errorf("sqlstore: sync run store is not configured")
	}
	run.TenantID = strings.TrimSpace(run.TenantID)
	run.Source = strings.TrimSpace(run.Source)
	if run.TenantID == "" || run.Source == "" {
		return core.SyncRun{}, fmt.Errorf("sqlstore: run tenant id and source are required")
	}
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = core.SyncRunStatusRunning
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}

	record := newSyncRunRecord(run, now)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.SyncRun{}, err
	}
	return record.toDomain(), nil
}

// Update persists a run mutation. Terminal rows are immutable: an update
// against a finished run reports an invalid transition instead of silently
// rewriting history.
func (s *SyncRunStore) Update(ctx context.Context, run core.SyncRun) (core.SyncRun, error) {
	if s == nil || s.db == nil {
		return core.SyncRun{}, fmt.Errorf("sqlstore: sync run store is not configured")
	}
	run.ID = strings.TrimSpace(run.ID)
	if run.ID == "" {
		return core.SyncRun{}, fmt.Errorf("sqlstore: run id is required")
	}

	now := time.Now().UTC()
	record := newSyncRunRecord(run, now)
	res, err := s.db.NewUpdate().
		Model(record).
		Column("status", "finished_at", "error", "inserted_count", "metadata", "updated_at").
		Where("?TableAlias.id = ?", run.ID).
		Where("?TableAlias.status = ?", string(core.SyncRunStatusRunning)).
		Exec(ctx)
	if err != nil {
		return core.SyncRun{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.SyncRun{}, err
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, run.ID)
		if getErr != nil {
			return core.SyncRun{}, getErr
		}
		return core.SyncRun{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidSyncRunTransition, current.Status, run.Status)
	}
	return record.toDomain(), nil
}

func (s *SyncRunStore) Get(ctx context.Context, id string) (core.SyncRun, error) {
	if s == nil || s.repo == nil {
		return core.SyncRun{}, fmt.Errorf("sqlstore: sync run store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SyncRun{}, fmt.Errorf("%w: id %q", core.ErrSyncRunNotFound, id)
		}
		return core.SyncRun{}, err
	}
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return core.SyncRun{}, fmt.Errorf("%w: id %q", core.ErrSyncRunNotFound, id)
	}
	return record.toDomain(), nil
}

// SweepStalled force-fails running rows that started before the cutoff and
// never finished, so a crashed worker cannot wedge the single-flight guard.
func (s *SyncRunStore) SweepStalled(ctx context.Context, cutoff time.Time, reason string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: sync run store is not configured")
	}
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*syncRunRecord)(nil)).
		Set("status = ?", string(core.SyncRunStatusFailed)).
		Set("error = ?", strings.TrimSpace(reason)).
		Set("finished_at = ?", now).
		Set("updated_at = ?", now).
		Where("?TableAlias.status = ?", string(core.SyncRunStatusRunning)).
		Where("?TableAlias.started_at < ?", cutoff.UTC()).
		Where("?TableAlias.finished_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SyncRunStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]core.SyncRun, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: sync run store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.OrderBy("started_at DESC"),
	}
	if limit > 0 {
		criteria = append(criteria, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}

	out := make([]core.SyncRun, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
