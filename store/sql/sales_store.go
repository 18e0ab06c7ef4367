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

type DailySalesStore struct {
	db *bun.DB
}

func NewDailySalesStore(db *bun.DB) (*DailySalesStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &DailySalesStore{db: db}, nil
}

func (s *DailySalesStore) ReplaceDays(ctx context.Context, tenantID string, days []time.Time, rows []core.DailySales) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: daily sales store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	keys := dayKeys(days)
	if len(keys) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]*dailySalesRecord, 0, len(rows))
	for _, row := range rows {
		record := newDailySalesRecord(row, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*dailySalesRecord)(nil)).
			Where("?TableAlias.tenant_id = ?", tenantID).
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

func (s *DailySalesStore) ListRange(ctx context.Context, tenantID string, from time.Time, to time.Time) ([]core.DailySales, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: daily sales store is not configured")
	}
	var records []*dailySalesRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.day >= ?", core.FormatDay(from)).
		Where("?TableAlias.day <= ?", core.FormatDay(to)).
		OrderExpr("?TableAlias.day ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.DailySales, 0, len(records))
	for _, record := range records {
		row, convErr := record.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, row)
	}
	return out, nil
}
