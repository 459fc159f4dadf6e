// Package statestore provides the key-value persistence capability the cart,
// favorites, session, and wallet state are built on. Values are opaque JSON
// blobs under namespaced, per-user keys; a blob that fails to parse is
// discarded wholesale rather than surfaced as an error.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrNotFound is returned when no value exists for a key.
var ErrNotFound = errors.New("statestore: key not found")

// Store is the persistence capability injected into the stateful modules.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// GetJSON loads and decodes the value at key into dst. A missing value and a
// corrupt value both report found=false: corrupt persisted state is treated
// as absent, never as an error the caller has to handle.
func GetJSON(ctx context.Context, s Store, key string, dst any) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if json.Unmarshal(data, dst) != nil {
		// Corrupt blob. Drop it so the next write starts clean.
		_ = s.Remove(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data)
}

// Memory is an in-process Store, used in tests and as the default backend
// when no persistence is configured.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
