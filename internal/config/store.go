// Package config persists the dashboard settings blob and rebuilds a complete
// Settings object from whatever was stored.
package config

import (
	"context"
	"errors"
)

// SettingsKey is the single durable key holding the full settings JSON.
const SettingsKey = "finsight_settings"

// ErrNotFound is returned by Load when nothing has been persisted yet
// (first run).
var ErrNotFound = errors.New("config: no persisted settings")

// Store is the interface for durable settings storage. Every write replaces
// the whole blob.
type Store interface {
	// Load returns the persisted blob, or ErrNotFound on first run.
	Load(ctx context.Context) ([]byte, error)

	// Save overwrites the persisted blob.
	Save(ctx context.Context, data []byte) error

	// Path describes where the blob lives, for logging.
	Path() string

	// Close releases the backend's resources.
	Close() error
}
