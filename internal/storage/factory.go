// factory.go implements the storage backend registry, mapping backend names
// (local, s3, azure, gcs) to constructor functions.
package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hogwarts-exams/proctor/internal/config"
)

// FactoryFunc creates a storage backend from the catalog configuration
type FactoryFunc func(*config.CatalogConfig) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]FactoryFunc)
)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends returns the registered backend names in sorted order
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStorage creates the storage backend selected by cfg.Backend
func NewStorage(cfg *config.CatalogConfig) (Storage, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported catalog backend: %s (registered: %v)", cfg.Backend, Backends())
	}

	return factory(cfg)
}
