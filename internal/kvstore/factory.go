package kvstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

// StoreFactory is the Strategy interface for creating KVStore implementations.
// Each backend registers one from its init() function. A factory doubles as
// the config validator for its store type.
type StoreFactory interface {
	// Create creates a new store from the store section of the configuration.
	Create(cfg config.StoreConfig) (core.KVStore, error)

	// Type returns the type identifier ("memory", "file", "redis", "dynamodb").
	Type() string

	// Validate validates the configuration specific to this store type.
	Validate(cfg config.StoreConfig) error
}

var (
	factoryRegistry = make(map[string]StoreFactory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a store factory and its config validator.
// Panics if the factory is nil, untyped or already registered.
func RegisterFactory(factory StoreFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		registryMutex.Unlock()
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	registryMutex.Unlock()

	config.RegisterStoreValidator(factory)
}

// Create creates a store using the factory registered for cfg.Type. When
// cfg.KeyPrefix is set every key is transparently namespaced.
func Create(cfg config.StoreConfig) (core.KVStore, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("store type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}

	if err := factory.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", cfg.Type, err)
	}

	store, err := factory.Create(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.KeyPrefix != "" {
		return NewNamespaced(store, cfg.KeyPrefix), nil
	}
	return store, nil
}

// GetRegisteredTypes returns all registered store types in sorted order.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
