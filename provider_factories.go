package syncengine

import (
	"fmt"

	"github.com/ohjayaxel/syncengine/core"
	"github.com/ohjayaxel/syncengine/providers/googleads"
	"github.com/ohjayaxel/syncengine/providers/shopify"
	"github.com/ohjayaxel/syncengine/ratelimit"
	"github.com/ohjayaxel/syncengine/transport"
)

// StrategyDeps carries the collaborators shared by the built-in strategies.
// HTTPClient is optional; the transport adapters fall back to their default
// client when it is nil.
type StrategyDeps struct {
	Stores     core.StoreProvider
	Observer   *core.Observer
	HTTPClient transport.HTTPDoer
}

func (d StrategyDeps) validate() error {
	if d.Stores == nil {
		return fmt.Errorf("syncengine: store provider is required")
	}
	return nil
}

func (d StrategyDeps) aggregator() *core.Aggregator {
	return core.NewAggregator(
		d.Stores.OrderStore(),
		d.Stores.AdsPerformanceStore(),
		d.Stores.DailyKPIStore(),
		d.Stores.DailySalesStore(),
	)
}

// ShopifyStrategy builds the commerce strategy: GraphQL transport with retry,
// order persistence, new-vs-returning classification, and KPI aggregation.
func ShopifyStrategy(cfg core.Config, deps StrategyDeps) (*shopify.Strategy, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	adapter := transport.NewRetryAdapter(
		transport.NewGraphQLAdapter("", deps.HTTPClient),
		ratelimit.NewRetryPolicy(cfg.Retry),
	)
	client := shopify.NewClient(adapter, cfg.Shopify, cfg.Sync.PageCeiling)
	return shopify.NewStrategy(
		client,
		deps.Stores.OrderStore(),
		core.NewClassifier(deps.Stores.CustomerLedgerStore()),
		deps.aggregator(),
		deps.Observer,
		cfg.Shopify.ShopDomain,
	), nil
}

// GoogleAdsStrategy builds the ads strategy: REST transport with retry,
// geo resolution, performance persistence, and KPI aggregation.
func GoogleAdsStrategy(cfg core.Config, deps StrategyDeps) (*googleads.Strategy, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	adapter := transport.NewRetryAdapter(
		transport.NewRESTAdapter(deps.HTTPClient),
		ratelimit.NewRetryPolicy(cfg.Retry),
	)
	client := googleads.NewClient(adapter, cfg.GoogleAds, cfg.Sync.PageCeiling)
	return googleads.NewStrategy(
		client,
		deps.Stores.AdsPerformanceStore(),
		deps.Stores.GeoTargetStore(),
		deps.aggregator(),
		deps.Observer,
	), nil
}

// RegisterBuiltinStrategies wires both built-in strategies into the registry.
func RegisterBuiltinStrategies(registry core.Registry, cfg core.Config, deps StrategyDeps) error {
	if registry == nil {
		return fmt.Errorf("syncengine: registry is required")
	}
	shopifyStrategy, err := ShopifyStrategy(cfg, deps)
	if err != nil {
		return err
	}
	if err := registry.Register(shopifyStrategy); err != nil {
		return err
	}
	googleAdsStrategy, err := GoogleAdsStrategy(cfg, deps)
	if err != nil {
		return err
	}
	return registry.Register(googleAdsStrategy)
}
