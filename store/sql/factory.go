package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	connectionStore     *ConnectionStore
	orderStore          *OrderStore
	adsPerformanceStore *AdsPerformanceStore
	customerLedgerStore *CustomerLedgerStore
	dailyKPIStore       *DailyKPIStore
	dailySalesStore     *DailySalesStore
	syncRunStore        *SyncRunStore
	geoTargetStore      core.GeoTargetStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.connectionStore != nil && f.syncRunStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// UseGeoTargetCache wraps the geo reference store with a read-through cache.
// Call after BuildStores; sync strategies built afterwards pick up the
// cached store through the provider accessor.
func (f *RepositoryFactory) UseGeoTargetCache(cacheService repositorycache.CacheService) error {
	if f == nil || f.geoTargetStore == nil {
		return fmt.Errorf("sqlstore: stores are not built")
	}
	cached, err := NewCachedGeoTargetStore(f.geoTargetStore, cacheService)
	if err != nil {
		return err
	}
	f.geoTargetStore = cached
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) OrderStore() core.OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) AdsPerformanceStore() core.AdsPerformanceStore {
	if f == nil {
		return nil
	}
	return f.adsPerformanceStore
}

func (f *RepositoryFactory) CustomerLedgerStore() core.CustomerLedgerStore {
	if f == nil {
		return nil
	}
	return f.customerLedgerStore
}

func (f *RepositoryFactory) DailyKPIStore() core.DailyKPIStore {
	if f == nil {
		return nil
	}
	return f.dailyKPIStore
}

func (f *RepositoryFactory) DailySalesStore() core.DailySalesStore {
	if f == nil {
		return nil
	}
	return f.dailySalesStore
}

func (f *RepositoryFactory) SyncRunStore() core.SyncRunStore {
	if f == nil {
		return nil
	}
	return f.syncRunStore
}

func (f *RepositoryFactory) GeoTargetStore() core.GeoTargetStore {
	if f == nil {
		return nil
	}
	return f.geoTargetStore
}

func (f *RepositoryFactory) initStores() error {
	connectionStore, err := NewConnectionStore(f.db)
	if err != nil {
		return err
	}
	f.connectionStore = connectionStore

	orderStore, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	f.orderStore = orderStore

	adsPerformanceStore, err := NewAdsPerformanceStore(f.db)
	if err != nil {
		return err
	}
	f.adsPerformanceStore = adsPerformanceStore

	customerLedgerStore, err := NewCustomerLedgerStore(f.db)
	if err != nil {
		return err
	}
	f.customerLedgerStore = customerLedgerStore

	dailyKPIStore, err := NewDailyKPIStore(f.db)
	if err != nil {
		return err
	}
	f.dailyKPIStore = dailyKPIStore

	dailySalesStore, err := NewDailySalesStore(f.db)
	if err != nil {
		return err
	}
	f.dailySalesStore = dailySalesStore

	syncRunStore, err := NewSyncRunStore(f.db)
	if err != nil {
		return err
	}
	f.syncRunStore = syncRunStore

	geoTargetStore, err := NewGeoTargetStore(f.db)
	if err != nil {
		return err
	}
	f.geoTargetStore = geoTargetStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
