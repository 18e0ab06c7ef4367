package syncengine

import "github.com/ohjayaxel/syncengine/core"

type Config = core.Config

type SyncConfig = core.SyncConfig

type RetryConfig = core.RetryConfig

type SecurityConfig = core.SecurityConfig

type HTTPConfig = core.HTTPConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ConnectionLocker = core.ConnectionLocker
type SecretProvider = core.SecretProvider
type TokenRefresher = core.TokenRefresher
type MetricsRecorder = core.MetricsRecorder
type Registry = core.Registry
type SyncStrategy = core.SyncStrategy
type StoreProvider = core.StoreProvider

type Connection = core.Connection
type SyncRun = core.SyncRun
type DailyKPI = core.DailyKPI
type DailySales = core.DailySales

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorFactory          = core.WithErrorFactory
	WithErrorMapper           = core.WithErrorMapper
	WithSecretProvider        = core.WithSecretProvider
	WithTokenRefresher        = core.WithTokenRefresher
	WithPersistenceClient     = core.WithPersistenceClient
	WithRepositoryFactory     = core.WithRepositoryFactory
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithConnectionLocker      = core.WithConnectionLocker
	WithRetryBackoffScheduler = core.WithRetryBackoffScheduler
	WithRegistry              = core.WithRegistry
	WithStores                = core.WithStores
	WithClock                 = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
