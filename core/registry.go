package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StrategyRegistry holds one sync strategy per source identifier.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[string]SyncStrategy
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: make(map[string]SyncStrategy)}
}

func (r *StrategyRegistry) Register(strategy SyncStrategy) error {
	if strategy == nil {
		return fmt.Errorf("core: strategy is nil")
	}
	source := strings.TrimSpace(strategy.Source())
	if source == "" {
		return fmt.Errorf("core: strategy source is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[source]; exists {
		return fmt.Errorf("core: strategy already registered: %s", source)
	}
	r.strategies[source] = strategy
	return nil
}

func (r *StrategyRegistry) Get(source string) (SyncStrategy, bool) {
	key := strings.TrimSpace(source)
	if key == "" {
		return nil, false
	}
	r.mu.RLock()
	strategy, ok := r.strategies[key]
	r.mu.RUnlock()
	return strategy, ok
}

func (r *StrategyRegistry) List() []SyncStrategy {
	r.mu.RLock()
	keys := make([]string, 0, len(r.strategies))
	for source := range r.strategies {
		keys = append(keys, source)
	}
	strategies := make([]SyncStrategy, 0, len(keys))
	sort.Strings(keys)
	for _, source := range keys {
		strategies = append(strategies, r.strategies[source])
	}
	r.mu.RUnlock()
	return strategies
}
