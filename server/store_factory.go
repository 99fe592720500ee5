package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	config "github.com/agentwire/a2a/server/config"
	zap "go.uber.org/zap"
)

// StoreFactory defines the interface for creating task store instances
type StoreFactory interface {
	// CreateStore creates a task store with the given configuration
	CreateStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (TaskStore, error)

	// SupportedProvider returns the provider name this factory supports
	SupportedProvider() string

	// ValidateConfig validates the configuration for this provider
	ValidateConfig(cfg config.StoreConfig) error
}

// StoreFactoryRegistry manages registered store providers
type StoreFactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]StoreFactory
}

// globalRegistry is the global store factory registry
var globalRegistry = &StoreFactoryRegistry{
	factories: make(map[string]StoreFactory),
}

// RegisterStoreProvider registers a store provider factory
func RegisterStoreProvider(provider string, factory StoreFactory) {
	globalRegistry.Register(provider, factory)
}

// GetSupportedProviders returns a list of all registered providers
func GetSupportedProviders() []string {
	return globalRegistry.Providers()
}

// CreateTaskStore creates a task store using the registered factories
func CreateTaskStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (TaskStore, error) {
	return globalRegistry.CreateStore(ctx, cfg, logger)
}

// Register registers a factory for a provider
func (r *StoreFactoryRegistry) Register(provider string, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

// Providers returns all registered provider names sorted alphabetically
func (r *StoreFactoryRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.factories))
	for provider := range r.factories {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

// CreateStore looks up the provider's factory, validates the configuration
// and creates the store
func (r *StoreFactoryRegistry) CreateStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (TaskStore, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported store provider %q, supported providers: %v", cfg.Provider, r.Providers())
	}

	if err := factory.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for provider %q: %w", cfg.Provider, err)
	}

	return factory.CreateStore(ctx, cfg, logger)
}
