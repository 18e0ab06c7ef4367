package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/ohjayaxel/syncengine/core"
)

const geoTargetCacheKeyPrefix = "syncengine::geo_target::v1"

// CachedGeoTargetStore is a read-through cache over the geo reference table.
// The table changes only on seed refreshes, so ads syncs resolving the same
// handful of country criteria skip the database on repeat lookups.
type CachedGeoTargetStore struct {
	base  core.GeoTargetStore
	cache repositorycache.CacheService
}

func NewCachedGeoTargetStore(
	base core.GeoTargetStore,
	cacheService repositorycache.CacheService,
) (*CachedGeoTargetStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base geo target store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: geo target cache service is required")
	}
	return &CachedGeoTargetStore{base: base, cache: cacheService}, nil
}

// GeoTargetCacheKey returns the deterministic cache key contract for geo
// lookups: syncengine::geo_target::v1::<criterion_id>.
func GeoTargetCacheKey(criterionID int64) string {
	return geoTargetCacheKeyPrefix + "::" + strconv.FormatInt(criterionID, 10)
}

func (s *CachedGeoTargetStore) Get(ctx context.Context, criterionID int64) (core.GeoTarget, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.GeoTarget{}, fmt.Errorf("sqlstore: cached geo target store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, GeoTargetCacheKey(criterionID), func(ctx context.Context) (core.GeoTarget, error) {
		return s.base.Get(ctx, criterionID)
	})
}

func (s *CachedGeoTargetStore) Upsert(ctx context.Context, targets []core.GeoTarget) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached geo target store is not configured")
	}
	if err := s.base.Upsert(ctx, targets); err != nil {
		return err
	}
	for _, target := range targets {
		if err := s.cache.Delete(ctx, GeoTargetCacheKey(target.CriterionID)); err != nil {
			return err
		}
	}
	return nil
}

var _ core.GeoTargetStore = (*CachedGeoTargetStore)(nil)
