// Package adapter implements core.Adapter for each supported backend and the
// factory that resolves a connection config to a configured adapter.
package adapter

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/schema"
)

// Dependencies are the shared collaborators handed to every new adapter.
type Dependencies struct {
	// Schemas resolves and caches table schemas. Adapters that validate
	// writes against a schema discover and register it here.
	Schemas *schema.Repository
}

// Factory is the Strategy interface for creating adapters. Each backend
// registers one from its init() function. A factory doubles as the config
// validator for its connection type.
type Factory interface {
	// New returns an unconfigured adapter.
	New(deps Dependencies) core.Adapter

	// Type returns the type identifier ("memory", "sql", "dynamodb").
	Type() string

	// Validate validates the connection settings specific to this type.
	Validate(cfg core.AdapterConfig) error
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers an adapter factory and its connection validator.
// Panics if the factory is nil, untyped or already registered.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		registryMutex.Unlock()
		panic(fmt.Sprintf("adapter factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	registryMutex.Unlock()

	config.RegisterConnectionValidator(factory)
}

// Create resolves cfg.Type to a factory, builds the adapter and configures
// it. On failure the adapter is nil and the response carries general errors.
func Create(ctx context.Context, cfg core.AdapterConfig, deps Dependencies) (core.Adapter, *core.OperationResponse) {
	resp := core.NewOperationResponse()

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		resp.AddGeneral(core.SeverityError, "Unknown adapter configuration type: %q", cfg.Type)
		return nil, resp
	}
	if err := factory.Validate(cfg); err != nil {
		resp.AddGeneral(core.SeverityError, "Invalid configuration for %s adapter %s: %v", cfg.Type, cfg.Name, err)
		return nil, resp
	}

	a := factory.New(deps)
	resp = a.Configure(ctx, cfg)
	if !resp.IsOk() {
		if err := a.Close(); err != nil {
			log.Printf("[ADAPTER] WARNING: Failed to close %s adapter %s: %v", cfg.Type, cfg.Name, err)
		}
		return nil, resp
	}

	log.Printf("[ADAPTER] Created %s adapter %s", cfg.Type, cfg.Name)
	return a, resp
}

// GetRegisteredTypes returns all registered adapter types in sorted order.
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

// IsTypeRegistered checks if an adapter type is registered.
func IsTypeRegistered(adapterType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[adapterType]
	return exists
}
