package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/finsight-labs/finsight-go/internal/config"
	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/remote"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

// newClient builds the backend client from options.
func newClient(opts *Options) (*remote.Client, error) {
	return remote.New(remote.Options{
		BaseURL:   opts.APIURL,
		Timeout:   opts.Timeout,
		RateLimit: opts.RateLimit,
		Burst:     opts.RateBurst,
		Logger:    slog.Default(),
	})
}

// openBackend opens the configured settings storage. An unreachable backend
// is a startup error.
func openBackend(ctx context.Context, opts *Options) (config.Store, error) {
	switch opts.Storage.Backend {
	case BackendMemory:
		return config.NewMemStore(), nil
	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: opts.Storage.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Storage.RedisAddr, err)
		}
		return config.NewRedisStore(rdb, config.SettingsKey), nil
	case BackendSQLite:
		return config.OpenSQLiteStore(ctx, opts.Storage.SQLitePath)
	default:
		return config.NewJSONStore(opts.Storage.Path), nil
	}
}

// settingsStack is the settings store with its side-effect sink and bus.
type settingsStack struct {
	backend      config.Store
	store        *settings.Store
	presentation *settings.Presentation
	bus          *events.Bus[models.Settings]
}

// openSettings opens storage and loads the settings from it.
func openSettings(ctx context.Context, opts *Options) (*settingsStack, error) {
	backend, err := openBackend(ctx, opts)
	if err != nil {
		return nil, err
	}
	st := &settingsStack{
		backend:      backend,
		presentation: settings.NewPresentation(),
		bus:          events.NewBus[models.Settings](),
	}
	st.store = settings.New(backend, st.presentation, st.bus, slog.Default())
	st.store.Load(ctx)
	return st, nil
}

func (s *settingsStack) Close() error {
	return s.backend.Close()
}
