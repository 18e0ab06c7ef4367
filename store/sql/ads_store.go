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

type AdsPerformanceStore struct {
	db *bun.DB
}

func NewAdsPerformanceStore(db *bun.DB) (*AdsPerformanceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &AdsPerformanceStore{db: db}, nil
}

func (s *AdsPerformanceStore) UpsertRows(ctx context.Context, rows []core.AdsPerformanceRow) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: ads performance store is not configured")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	records := make([]*adsPerformanceRecord, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.TenantID) == "" || row.Day.IsZero() {
			return 0, fmt.Errorf("sqlstore: ads row tenant id and day are required")
		}
		record := newAdsPerformanceRecord(row, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}

	_, err := s.db.NewInsert().
		Model(&records).
		On("CONFLICT (tenant_id, provider_id, day, campaign_id, ad_group_id, country_criterion_id) DO UPDATE").
		Set("campaign_name = EXCLUDED.campaign_name").
		Set("ad_group_name = EXCLUDED.ad_group_name").
		Set("country_code = EXCLUDED.country_code").
		Set("spend = EXCLUDED.spend").
		Set("clicks = EXCLUDED.clicks").
		Set("impressions = EXCLUDED.impressions").
		Set("conversions = EXCLUDED.conversions").
		Set("conversion_value = EXCLUDED.conversion_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *AdsPerformanceStore) ListByDays(ctx context.Context, tenantID string, days []time.Time) ([]core.AdsPerformanceRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: ads performance store is not configured")
	}
	keys := dayKeys(days)
	if len(keys) == 0 {
		return nil, nil
	}
	var records []*adsPerformanceRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.day IN (?)", bun.In(keys)).
		OrderExpr("?TableAlias.day ASC, ?TableAlias.campaign_id ASC, ?TableAlias.ad_group_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.AdsPerformanceRow, 0, len(records))
	for _, record := range records {
		row, convErr := record.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, row)
	}
	return out, nil
}
