package config

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the settings blob under one Redis key, for agents that
// share settings across hosts.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore wraps an existing client. An empty key uses SettingsKey.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = SettingsKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Load fetches the blob. A missing key maps to ErrNotFound.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save overwrites the blob with no expiry.
func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	return s.rdb.Set(ctx, s.key, data, 0).Err()
}

// Path returns "redis://<addr>/<key>".
func (s *RedisStore) Path() string {
	return "redis://" + s.rdb.Options().Addr + "/" + s.key
}

// Close closes the underlying client.
func (s *RedisStore) Close() error { return s.rdb.Close() }

var _ Store = (*RedisStore)(nil)
