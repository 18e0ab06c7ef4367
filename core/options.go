package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	tokenRefresher    TokenRefresher
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	connectionLocker  ConnectionLocker
	retryScheduler    RetryBackoffScheduler
	registry          Registry
	stores            StoreProvider
	clock             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithTokenRefresher(refresher TokenRefresher) Option {
	return func(b *serviceBuilder) {
		b.tokenRefresher = refresher
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithConnectionLocker(locker ConnectionLocker) Option {
	return func(b *serviceBuilder) {
		b.connectionLocker = locker
	}
}

func WithRetryBackoffScheduler(scheduler RetryBackoffScheduler) Option {
	return func(b *serviceBuilder) {
		b.retryScheduler = scheduler
	}
}

func WithRegistry(registry Registry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithStores(stores StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.stores = stores
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("syncengine", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		registry:        NewStrategyRegistry(),
		clock:           time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return syncErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	sync := map[string]any{}
	if includeZero || cfg.Sync.LookbackDays != 0 {
		sync["lookback_days"] = cfg.Sync.LookbackDays
	}
	if includeZero || cfg.Sync.BatchTenantLimit != 0 {
		sync["batch_tenant_limit"] = cfg.Sync.BatchTenantLimit
	}
	if includeZero || cfg.Sync.ExplicitCapDays != 0 {
		sync["explicit_cap_days"] = cfg.Sync.ExplicitCapDays
	}
	if includeZero || cfg.Sync.PageCeiling != 0 {
		sync["page_ceiling"] = cfg.Sync.PageCeiling
	}
	if includeZero || cfg.Sync.TenantTimeout != 0 {
		sync["tenant_timeout"] = cfg.Sync.TenantTimeout
	}
	if includeZero || cfg.Sync.RefreshLeadWindow != 0 {
		sync["refresh_lead_window"] = cfg.Sync.RefreshLeadWindow
	}
	if len(sync) > 0 {
		layer["sync"] = sync
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxAttempts != 0 {
		retry["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if includeZero || cfg.Retry.BaseDelay != 0 {
		retry["base_delay"] = cfg.Retry.BaseDelay
	}
	if includeZero || cfg.Retry.MaxDelay != 0 {
		retry["max_delay"] = cfg.Retry.MaxDelay
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}

	if includeZero || len(cfg.Security.EncryptionKeys) > 0 {
		layer["security"] = map[string]any{
			"encryption_keys": append([]string(nil), cfg.Security.EncryptionKeys...),
		}
	}

	httpLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.HTTP.ListenAddr) != "" {
		httpLayer["listen_addr"] = cfg.HTTP.ListenAddr
	}
	if includeZero || strings.TrimSpace(cfg.HTTP.SharedSecret) != "" {
		httpLayer["shared_secret"] = cfg.HTTP.SharedSecret
	}
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}

	shopify := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Shopify.APIVersion) != "" {
		shopify["api_version"] = cfg.Shopify.APIVersion
	}
	if includeZero || strings.TrimSpace(cfg.Shopify.ShopDomain) != "" {
		shopify["shop_domain"] = cfg.Shopify.ShopDomain
	}
	if len(shopify) > 0 {
		layer["shopify"] = shopify
	}

	googleads := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.GoogleAds.APIVersion) != "" {
		googleads["api_version"] = cfg.GoogleAds.APIVersion
	}
	if includeZero || strings.TrimSpace(cfg.GoogleAds.DeveloperToken) != "" {
		googleads["developer_token"] = cfg.GoogleAds.DeveloperToken
	}
	if len(googleads) > 0 {
		layer["googleads"] = googleads
	}

	return layer
}
