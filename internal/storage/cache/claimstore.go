package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-onesignal-service/pkg/dispatch"
)

// keyPrefix namespaces claim keys in a shared Redis.
const keyPrefix = "onesignal:claim:"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// CachedClaimStore is a Decorator that answers repeat claims from Redis and
// only reaches the real store for keys Redis has not seen.
// If Redis is down, every claim goes to the real store.
type CachedClaimStore struct {
	realStore dispatch.ClaimStore
	cache     CacheClient
	logger    *slog.Logger
}

func NewCachedClaimStore(realStore dispatch.ClaimStore, cache CacheClient, logger *slog.Logger) *CachedClaimStore {
	return &CachedClaimStore{
		realStore: realStore,
		cache:     cache,
		logger:    logger.With("component", "CachedClaimStore"),
	}
}

func (s *CachedClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	cacheKey := keyPrefix + key

	fresh, err := s.cache.SetNX(ctx, cacheKey, ttl)
	if err != nil {
		s.logger.Warn("Claim cache unavailable, using store", "key", key, "err", err)
		return s.realStore.Claim(ctx, key, ttl)
	}
	if !fresh {
		return false, nil
	}

	claimed, err := s.realStore.Claim(ctx, key, ttl)
	if err != nil {
		// Without a durable claim the next attempt must not be blocked by the cache.
		if delErr := s.cache.Del(ctx, cacheKey); delErr != nil {
			s.logger.Warn("Failed to roll back cached claim", "key", key, "err", delErr)
		}
		return false, err
	}
	return claimed, nil
}

func (s *CachedClaimStore) Release(ctx context.Context, key string) error {
	storeErr := s.realStore.Release(ctx, key)
	cacheErr := s.cache.Del(ctx, keyPrefix+key)
	return errors.Join(storeErr, cacheErr)
}
