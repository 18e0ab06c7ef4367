package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type DailyKPIStore struct {
	db *bun.DB
}

func NewDailyKPIStore(db *bun.DB) (*DailyKPIStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &DailyKPIStore{db: db}, nil
}

// ReplaceDays swaps the aggregate rows for (tenant, source, days) in one
// transaction: readers never observe a day with both stale and fresh rows.
func (s *DailyKPIStore) ReplaceDays(ctx context.Context, tenantID string, source string, days []time.Time, rows []core.DailyKPI) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: daily kpi store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	source = strings.TrimSpace(source)
	if tenantID == "" || source == "" {
		return fmt.Errorf("sqlstore: tenant id and source are required")
	}
	keys := dayKeys(days)
	if len(keys) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]*dailyKPIRecord, 0, len(rows))
	for _, row := range rows {
		record := newDailyKPIRecord(row, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*dailyKPIRecord)(nil)).
			Where("?TableAlias.tenant_id = ?", tenantID).
			Where("?TableAlias.source = ?", source).
			Where("?TableAlias.day IN (?)", bun.In(keys)).
			Exec(ctx); err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&records).Exec(ctx)
		return err
	})
}

func (s *DailyKPIStore) ListRange(ctx context.Context, tenantID string, from time.Time, to time.Time, source string) ([]core.DailyKPI, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: daily kpi store is not configured")
	}
	var records []*dailyKPIRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.day >= ?", core.FormatDay(from)).
		Where("?TableAlias.day <= ?", core.FormatDay(to)).
		OrderExpr("?TableAlias.day ASC, ?TableAlias.source ASC")
	if trimmed := strings.TrimSpace(source); trimmed != "" {
		query = query.Where("?TableAlias.source = ?", trimmed)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]core.DailyKPI, 0, len(records))
	for _, record := range records {
		row, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
