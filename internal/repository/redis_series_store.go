package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	"BandPilot/pkg/cache"
)

// RedisSeriesStore stores the CSV encoding of a series under series:<key>.
// Any cache.Service works; production wires the Redis one.
type RedisSeriesStore struct {
	c cache.Service
}

var _ domrepo.SeriesStore = (*RedisSeriesStore)(nil)

func NewRedisSeriesStore(c cache.Service) *RedisSeriesStore {
	return &RedisSeriesStore{c: c}
}

func seriesKey(key string) string {
	return cache.GenerateKey("series", strings.ToLower(key))
}

func (s *RedisSeriesStore) Load(ctx context.Context, key string) (*models.Series, error) {
	b, err := s.c.Get(ctx, seriesKey(key))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s not cached", models.ErrCacheUnavailable, key)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrCacheUnavailable, err)
	}
	return decodeSeries(bytes.NewReader(b))
}

func (s *RedisSeriesStore) Persist(ctx context.Context, key string, series *models.Series) error {
	b, err := encodeSeries(series)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.c.Set(ctx, seriesKey(key), b, 0)
}

// CacheLocker adapts a cache.Service to the builder's cross-process lock.
type CacheLocker struct {
	c cache.Service
}

var _ domrepo.Locker = (*CacheLocker)(nil)

func NewCacheLocker(c cache.Service) *CacheLocker {
	return &CacheLocker{c: c}
}

func (l *CacheLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return l.c.TryLock(ctx, cache.LockKey(key), ttl)
}

func (l *CacheLocker) Unlock(ctx context.Context, key, token string) error {
	return l.c.Unlock(ctx, cache.LockKey(key), token)
}
