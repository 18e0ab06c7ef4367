package syncengine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ohjayaxel/syncengine/core"
)

// StrategyPack groups sync strategies that ship together, letting downstream
// modules contribute new providers without touching engine wiring.
type StrategyPack struct {
	Name       string
	Strategies []core.SyncStrategy
}

// BundleFactory builds a downstream command/query bundle around the engine's
// sync service.
type BundleFactory func(service SyncService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	strategyPacks map[string]StrategyPack
	bundles       map[string]BundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		strategyPacks: map[string]StrategyPack{},
		bundles:       map[string]BundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterStrategyPack(pack StrategyPack) error {
	if h == nil {
		return fmt.Errorf("syncengine: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("syncengine: strategy pack name is required")
	}
	if len(pack.Strategies) == 0 {
		return fmt.Errorf("syncengine: strategy pack %q has no strategies", name)
	}

	normalized := StrategyPack{
		Name:       name,
		Strategies: append([]core.SyncStrategy(nil), pack.Strategies...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.strategyPacks[name]; exists {
		return fmt.Errorf("syncengine: strategy pack %q already registered", name)
	}
	h.strategyPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterBundle(name string, factory BundleFactory) error {
	if h == nil {
		return fmt.Errorf("syncengine: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("syncengine: bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("syncengine: bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("syncengine: bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyStrategyPacks registers every packed strategy on the given registry.
func (h *ExtensionHooks) ApplyStrategyPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("syncengine: registry is required")
	}

	for _, pack := range h.StrategyPacks() {
		for _, strategy := range pack.Strategies {
			if strategy == nil {
				return fmt.Errorf("syncengine: strategy pack %q contains nil strategy", pack.Name)
			}
			if err := registry.Register(strategy); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildBundles invokes every registered bundle factory in name order.
func (h *ExtensionHooks) BuildBundles(service SyncService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("syncengine: sync service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]BundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) StrategyPacks() []StrategyPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.strategyPacks))
	for name := range h.strategyPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]StrategyPack, 0, len(names))
	for _, name := range names {
		pack := h.strategyPacks[name]
		out = append(out, StrategyPack{
			Name:       pack.Name,
			Strategies: append([]core.SyncStrategy(nil), pack.Strategies...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
