package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/metrics"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value store behind the read-through decorator.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

type cachedService struct {
	next  Service
	cache Cache
	ttl   time.Duration
}

// NewCachedService serves analytics from cache for ttl. Cache failures fall
// back to next and are never returned to the caller.
func NewCachedService(next Service, cache Cache, ttl time.Duration) Service {
	return &cachedService{next: next, cache: cache, ttl: ttl}
}

func (s *cachedService) MonthlyEarnings(ctx context.Context, year int) (MonthlyEarnings, error) {
	return readThrough(ctx, s, fmt.Sprintf("analytics:earnings:%d", year), func() (MonthlyEarnings, error) {
		return s.next.MonthlyEarnings(ctx, year)
	})
}

func (s *cachedService) TopManufacturers(ctx context.Context, year, month, limit int) ([]RankedRevenue, error) {
	key := fmt.Sprintf("analytics:top-manufacturers:%d:%d:%d", year, month, ClampLimit(limit))
	return readThrough(ctx, s, key, func() ([]RankedRevenue, error) {
		return s.next.TopManufacturers(ctx, year, month, limit)
	})
}

func (s *cachedService) TopMedicines(ctx context.Context, year, month, limit int) ([]RankedRevenue, error) {
	key := fmt.Sprintf("analytics:top-medicines:%d:%d:%d", year, month, ClampLimit(limit))
	return readThrough(ctx, s, key, func() ([]RankedRevenue, error) {
		return s.next.TopMedicines(ctx, year, month, limit)
	})
}

func (s *cachedService) DashboardStats(ctx context.Context) (DashboardStats, error) {
	return readThrough(ctx, s, "analytics:dashboard", func() (DashboardStats, error) {
		return s.next.DashboardStats(ctx)
	})
}

func readThrough[T any](ctx context.Context, s *cachedService, key string, load func() (T, error)) (T, error) {
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			metrics.AnalyticsCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		log.Warn().Str("key", key).Msg("cache: dropping undecodable entry")
		metrics.AnalyticsCache.WithLabelValues("miss").Inc()
	case errors.Is(err, ErrCacheMiss):
		metrics.AnalyticsCache.WithLabelValues("miss").Inc()
	default:
		log.Warn().Err(err).Str("key", key).Msg("cache: read failed, computing directly")
		metrics.AnalyticsCache.WithLabelValues("error").Inc()
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: failed to encode value")
		return value, nil
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: write failed")
	}

	return value, nil
}
