package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type GeoTargetStore struct {
	db *bun.DB
}

func NewGeoTargetStore(db *bun.DB) (*GeoTargetStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &GeoTargetStore{db: db}, nil
}

func (s *GeoTargetStore) Get(ctx context.Context, criterionID int64) (core.GeoTarget, error) {
	if s == nil || s.db == nil {
		return core.GeoTarget{}, fmt.Errorf("sqlstore: geo target store is not configured")
	}
	if criterionID == 0 {
		return core.GeoTarget{}, fmt.Errorf("%w: criterion id 0", core.ErrGeoTargetNotFound)
	}
	record := &geoTargetRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.criterion_id = ?", criterionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.GeoTarget{}, fmt.Errorf("%w: criterion id %d", core.ErrGeoTargetNotFound, criterionID)
		}
		return core.GeoTarget{}, err
	}
	return record.toDomain(), nil
}

func (s *GeoTargetStore) Upsert(ctx context.Context, targets []core.GeoTarget) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: geo target store is not configured")
	}
	if len(targets) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*geoTargetRecord, 0, len(targets))
	for _, target := range targets {
		if target.CriterionID == 0 {
			return fmt.Errorf("sqlstore: geo target criterion id is required")
		}
		records = append(records, newGeoTargetRecord(target, now))
	}

	_, err := s.db.NewInsert().
		Model(&records).
		On("CONFLICT (criterion_id) DO UPDATE").
		Set("country_code = EXCLUDED.country_code").
		Set("name = EXCLUDED.name").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
