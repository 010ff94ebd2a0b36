package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNativeModuleNotFound is returned for a specifier no module provides
var ErrNativeModuleNotFound = errors.New("native module not found")

// NativeImporter resolves a specifier to a module's lifecycles, the way a
// native dynamic import would
type NativeImporter interface {
	Import(ctx context.Context, specifier string) (Lifecycles, error)
}

// ModuleTable is an in-process NativeImporter where Go-implemented
// applications register their lifecycles
type ModuleTable struct {
	mu      sync.RWMutex
	modules map[string]Lifecycles
}

// NewModuleTable creates an empty table
func NewModuleTable() *ModuleTable {
	return &ModuleTable{modules: make(map[string]Lifecycles)}
}

// Register makes lifecycles importable under specifier
func (t *ModuleTable) Register(specifier string, lc Lifecycles) {
	t.mu.Lock()
	t.modules[specifier] = lc
	t.mu.Unlock()
}

// Import implements NativeImporter
func (t *ModuleTable) Import(_ context.Context, specifier string) (Lifecycles, error) {
	t.mu.RLock()
	lc, ok := t.modules[specifier]
	t.mu.RUnlock()
	if !ok {
		return Lifecycles{}, fmt.Errorf("%w: %s", ErrNativeModuleNotFound, specifier)
	}
	return lc, nil
}
