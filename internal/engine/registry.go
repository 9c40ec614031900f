package engine

import (
	"fmt"
	"sync"

	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/filesystem"
)

// DispatcherFactory builds a dispatcher for tree, rejecting trees whose
// locking does not match the strategy
type DispatcherFactory func(tree *filesystem.FileSystem) (Dispatcher, error)

// Registry maps strategy names to dispatcher factories
type Registry struct {
	mu        sync.RWMutex
	factories map[config.Strategy]DispatcherFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[config.Strategy]DispatcherFactory{}}
}

// Register ties a factory to a strategy name. The first registration wins.
func (r *Registry) Register(strategy config.Strategy, factory DispatcherFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[strategy]; exists {
		return
	}
	r.factories[strategy] = factory
}

// Dispatcher resolves name (aliases included) and builds its dispatcher
func (r *Registry) Dispatcher(name string, tree *filesystem.FileSystem) (Dispatcher, error) {
	strategy, err := config.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	f, ok := r.factories[strategy]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dispatcher for strategy %q", strategy)
	}
	return f(tree)
}

// Strategies returns the registered names
func (r *Registry) Strategies() []config.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]config.Strategy, 0, len(r.factories))
	for s := range r.factories {
		names = append(names, s)
	}
	return names
}

// DefaultRegistry returns a registry with the built-in strategies
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.StrategyCoarse, func(tree *filesystem.FileSystem) (Dispatcher, error) {
		if tree.Guarded() {
			return nil, fmt.Errorf("coarse strategy needs an unguarded tree")
		}
		return NewCoarse(tree), nil
	})
	r.Register(config.StrategyFine, func(tree *filesystem.FileSystem) (Dispatcher, error) {
		if !tree.Guarded() {
			return nil, fmt.Errorf("fine strategy needs a guarded tree")
		}
		return NewFine(tree), nil
	})
	return r
}
