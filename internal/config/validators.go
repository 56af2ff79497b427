package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// StoreValidator validates the store section for one KVStore type.
// Backends register one from their init() function.
type StoreValidator interface {
	Validate(store StoreConfig) error
	Type() string
}

// ConnectionValidator validates one connection entry for one adapter type.
type ConnectionValidator interface {
	Validate(conn core.AdapterConfig) error
	Type() string
}

type typed interface {
	Type() string
}

// strategyRegistry maps a backend type to its validation strategy.
type strategyRegistry[V typed] struct {
	mu         sync.RWMutex
	validators map[string]V
}

func newStrategyRegistry[V typed]() *strategyRegistry[V] {
	return &strategyRegistry[V]{validators: make(map[string]V)}
}

// register panics if the type is empty or already registered.
func (r *strategyRegistry[V]) register(v V) {
	if v.Type() == "" {
		panic("validator type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.validators[v.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", v.Type()))
	}
	r.validators[v.Type()] = v
}

func (r *strategyRegistry[V]) get(t string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[t]
	return v, ok
}

func (r *strategyRegistry[V]) types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.validators))
	for t := range r.validators {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var (
	storeValidators      = newStrategyRegistry[StoreValidator]()
	connectionValidators = newStrategyRegistry[ConnectionValidator]()
)

// RegisterStoreValidator registers a store validator. Panics on duplicates.
func RegisterStoreValidator(v StoreValidator) {
	if v == nil {
		panic("validator cannot be nil")
	}
	storeValidators.register(v)
}

// RegisterConnectionValidator registers a connection validator. Panics on duplicates.
func RegisterConnectionValidator(v ConnectionValidator) {
	if v == nil {
		panic("validator cannot be nil")
	}
	connectionValidators.register(v)
}

// GetStoreValidator returns the validator for a store type.
func GetStoreValidator(storeType string) (StoreValidator, bool) {
	return storeValidators.get(storeType)
}

// GetConnectionValidator returns the validator for an adapter type.
func GetConnectionValidator(adapterType string) (ConnectionValidator, bool) {
	return connectionValidators.get(adapterType)
}

// RegisteredStoreTypes lists store types with a registered validator.
func RegisteredStoreTypes() []string {
	return storeValidators.types()
}

// RegisteredConnectionTypes lists adapter types with a registered validator.
func RegisteredConnectionTypes() []string {
	return connectionValidators.types()
}
