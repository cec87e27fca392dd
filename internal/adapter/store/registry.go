// Package store selects a destination backend by driver name. Backend packages
// register themselves from init().
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// Factory opens a Store for a data source name.
type Factory func(ctx context.Context, dsn string) (port.Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under driver. It panics on an empty name,
// a nil factory or a duplicate registration.
func Register(driver string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if driver == "" {
		panic("store: Register called with empty driver")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[driver]; exists {
		panic(fmt.Sprintf("store: factory already registered for driver=%q", driver))
	}
	factories[driver] = f
}

// Open connects to the backend registered under driver.
func Open(ctx context.Context, driver, dsn string) (port.Store, error) {
	if driver == "" {
		return nil, fmt.Errorf("store: missing driver")
	}

	mu.RLock()
	f := factories[driver]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported store driver %q (registered: %v)", driver, Drivers())
	}
	return f(ctx, dsn)
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
