package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore keeps the settings blob in a JSON file, written atomically.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore creates a new JSON store in the given config directory.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, SettingsKey+".json"),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load reads the blob from disk. Returns ErrNotFound on ENOENT.
func (s *JSONStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save writes the blob to disk before returning.
func (s *JSONStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(data)
}

// Close is a no-op for file stores.
func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) writeAtomic(data []byte) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

var _ Store = (*JSONStore)(nil)
