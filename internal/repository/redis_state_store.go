package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	domrepo "RegimeFlow/internal/domain/repository"
	pkgcache "RegimeFlow/pkg/cache"
)

// RedisStateStore persists the serialized engine snapshot in Redis so a
// restarted process resumes from the last acknowledged input.
type RedisStateStore struct {
	client *redis.Client
	key    string
}

func NewRedisStateStore(cache *pkgcache.RedisCache, key string) domrepo.StateStore {
	return &RedisStateStore{client: cache.Client(), key: key}
}

func (s *RedisStateStore) Save(ctx context.Context, raw []byte) error {
	// No TTL: the snapshot stays valid until overwritten.
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	return raw, true, nil
}
