// Package settings owns the dashboard settings object: it loads it once from
// durable storage, applies section-scoped updates, writes every change back,
// and re-derives presentation side effects from the current state.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/finsight-labs/finsight-go/internal/config"
	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/models"
)

// Effects receives the full settings object after load and after every
// change. Implementations must derive everything from the argument alone.
type Effects interface {
	Apply(s models.Settings)
}

// EffectsFunc adapts a plain function to Effects.
type EffectsFunc func(models.Settings)

// Apply calls f(s).
func (f EffectsFunc) Apply(s models.Settings) { f(s) }

// Store is the single writer of the settings object and its durable copy.
// All mutations go through apply(), which persists, applies effects and
// publishes under one lock.
type Store struct {
	mu         sync.RWMutex
	backend    config.Store
	settings   models.Settings
	loaded     bool
	persistErr error
	effects    Effects
	bus        *events.Bus[models.Settings]
	log        *slog.Logger
}

// New creates a Store. effects and bus may be nil.
func New(backend config.Store, effects Effects, bus *events.Bus[models.Settings], log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	if effects == nil {
		effects = EffectsFunc(func(models.Settings) {})
	}
	return &Store{
		backend:  backend,
		settings: models.DefaultSettings(),
		effects:  effects,
		bus:      bus,
		log:      log,
	}
}

// Load reads durable storage once and merges it over the defaults. It never
// fails: missing, unreadable or corrupt storage all yield defaults. Calls
// after the first return the current settings unchanged.
func (s *Store) Load(ctx context.Context) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.settings
	}

	raw, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, config.ErrNotFound):
		s.log.Info("settings: nothing persisted, using defaults", "path", s.backend.Path())
		s.settings = models.DefaultSettings()
	case err != nil:
		s.log.Warn("settings: failed to read persisted settings, using defaults", "path", s.backend.Path(), "err", err)
		s.persistErr = err
		s.settings = models.DefaultSettings()
	default:
		merged, mergeErr := config.MergeSettings(raw, s.log)
		if mergeErr != nil {
			s.log.Warn("settings: corrupt persisted settings, using defaults", "path", s.backend.Path(), "err", mergeErr)
		}
		s.settings = merged
	}

	s.loaded = true
	s.effects.Apply(s.settings)
	s.bus.Publish(s.settings)
	return s.settings
}

// Loaded reports whether Load has completed. Consumers must not trust
// Settings() before this is true.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Get returns one leaf value.
func (s *Store) Get(section, key string) (any, *models.AppError) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings.Get(section, key)
	if !ok {
		return nil, models.ErrNotFound("unknown setting " + section + "." + key)
	}
	return v, nil
}

// PersistError returns the most recent storage failure, or nil once a write
// has succeeded again. It never invalidates the in-memory settings.
func (s *Store) PersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistErr
}

// Update replaces exactly one leaf and returns the new settings. The whole
// object is written back before returning; a write failure is logged and
// kept for PersistError but the in-memory change stands.
func (s *Store) Update(ctx context.Context, section, key string, value any) (models.Settings, *models.AppError) {
	return s.apply(ctx, func(next *models.Settings) *models.AppError {
		if err := next.Set(section, key, value); err != nil {
			return err
		}
		if l, ok := models.LookupLeaf(section, key); ok && !l.Bool && !l.InDomain(value.(string)) {
			s.log.Warn("settings: value outside declared values, keeping", "setting", l.Path(), "value", value)
		}
		return nil
	})
}

// Reset restores the defaults through the same write-and-notify path.
func (s *Store) Reset(ctx context.Context) (models.Settings, *models.AppError) {
	return s.apply(ctx, func(next *models.Settings) *models.AppError {
		*next = models.DefaultSettings()
		return nil
	})
}

// apply is the core mutation primitive. It:
//  1. Acquires the write lock
//  2. Copies the current settings
//  3. Calls fn to modify the copy (fn may return an error to abort)
//  4. If fn succeeds: updates settings, writes them back, applies effects, publishes
func (s *Store) apply(ctx context.Context, fn func(*models.Settings) *models.AppError) (models.Settings, *models.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return models.Settings{}, models.ErrConflict("settings not loaded yet")
	}

	next := s.settings
	if err := fn(&next); err != nil {
		return models.Settings{}, err
	}

	s.settings = next
	s.persist(ctx, next)
	s.effects.Apply(next)
	s.bus.Publish(next)
	return next, nil
}

func (s *Store) persist(ctx context.Context, st models.Settings) {
	data, err := json.Marshal(st)
	if err == nil {
		err = s.backend.Save(ctx, data)
	}
	if err != nil {
		s.log.Warn("settings: failed to persist settings", "path", s.backend.Path(), "err", err)
		s.persistErr = err
		return
	}
	s.persistErr = nil
}
