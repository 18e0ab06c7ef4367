package core

import (
	"fmt"
	"strings"
	"time"
)

type SyncConfig struct {
	LookbackDays      int           `koanf:"lookback_days" mapstructure:"lookback_days"`
	BatchTenantLimit  int           `koanf:"batch_tenant_limit" mapstructure:"batch_tenant_limit"`
	ExplicitCapDays   int           `koanf:"explicit_cap_days" mapstructure:"explicit_cap_days"`
	PageCeiling       int           `koanf:"page_ceiling" mapstructure:"page_ceiling"`
	TenantTimeout     time.Duration `koanf:"tenant_timeout" mapstructure:"tenant_timeout"`
	RefreshLeadWindow time.Duration `koanf:"refresh_lead_window" mapstructure:"refresh_lead_window"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
}

type SecurityConfig struct {
	// EncryptionKeys holds the active key first, then retired keys that can
	// still decrypt older blobs.
	EncryptionKeys []string `koanf:"encryption_keys" mapstructure:"encryption_keys"`
}

type HTTPConfig struct {
	ListenAddr   string `koanf:"listen_addr" mapstructure:"listen_addr"`
	SharedSecret string `koanf:"shared_secret" mapstructure:"shared_secret"`
}

type ShopifyConfig struct {
	APIVersion string `koanf:"api_version" mapstructure:"api_version"`
	ShopDomain string `koanf:"shop_domain" mapstructure:"shop_domain"`
}

type GoogleAdsConfig struct {
	APIVersion     string `koanf:"api_version" mapstructure:"api_version"`
	DeveloperToken string `koanf:"developer_token" mapstructure:"developer_token"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Sync        SyncConfig      `koanf:"sync" mapstructure:"sync"`
	Retry       RetryConfig     `koanf:"retry" mapstructure:"retry"`
	Security    SecurityConfig  `koanf:"security" mapstructure:"security"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Shopify     ShopifyConfig   `koanf:"shopify" mapstructure:"shopify"`
	GoogleAds   GoogleAdsConfig `koanf:"googleads" mapstructure:"googleads"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "syncengine",
		Sync: SyncConfig{
			LookbackDays:      3,
			BatchTenantLimit:  10,
			ExplicitCapDays:   90,
			PageCeiling:       50,
			TenantTimeout:     10 * time.Minute,
			RefreshLeadWindow: 5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    30 * time.Second,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		Shopify: ShopifyConfig{
			APIVersion: "2024-07",
		},
		GoogleAds: GoogleAdsConfig{
			APIVersion: "v17",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Sync.LookbackDays < 0 {
		return fmt.Errorf("core: sync.lookback_days must be >= 0")
	}
	if c.Sync.BatchTenantLimit < 1 {
		return fmt.Errorf("core: sync.batch_tenant_limit must be >= 1")
	}
	if c.Sync.ExplicitCapDays < 1 {
		return fmt.Errorf("core: sync.explicit_cap_days must be >= 1")
	}
	if c.Sync.PageCeiling < 1 {
		return fmt.Errorf("core: sync.page_ceiling must be >= 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("core: retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("core: retry delays must be >= 0")
	}
	return nil
}
