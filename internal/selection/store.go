// Package selection remembers the last-selected table across reloads and
// restarts. The value is a single opaque table name; an empty string means
// nothing has been selected yet.
package selection

import (
	"context"
	"sync"
)

// DefaultKey is the key the selected table name is stored under.
const DefaultKey = "selectedTableName"

// Store persists the last-selected table name.
type Store interface {
	// Load returns the stored table name, or "" when none has been saved.
	Load(ctx context.Context) (string, error)

	// Save replaces the stored table name.
	Save(ctx context.Context, table string) error

	// Close releases any backend resources.
	Close() error
}

// Memory keeps the selection in process memory. It is the default backend
// and the one the tests use.
type Memory struct {
	mu    sync.RWMutex
	table string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the last saved table name.
func (m *Memory) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.table, nil
}

// Save replaces the table name.
func (m *Memory) Save(_ context.Context, table string) error {
	m.mu.Lock()
	m.table = table
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
