package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const filePermissions = 0644

// File is a Store backed by a single JSON file holding all keys. Writes go
// to a temp file first and are renamed into place, so a crash mid-write
// never corrupts the previous state.
type File struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// NewFile opens (or creates) a file-backed store at path. An unreadable or
// unparsable file is logged and treated as empty.
func NewFile(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	f := &File{path: path, logger: logger, values: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, &f.values); err != nil {
		logger.Warn("state file corrupt, starting empty",
			slog.String("path", path), slog.String("error", err.Error()))
		f.values = make(map[string]json.RawMessage)
	}
	return f, nil
}

// Get implements Store.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Store.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	f.values[key] = stored
	return f.flushLocked()
}

// Remove implements Store.
func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flushLocked()
}

// flushLocked writes the full map to disk. Caller must hold f.mu.
func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, f.path)
}
