// Package cache provides the time-boxed read-through cache shared by subscription
// matching and authorization decisions.
//
// Entries expire by absolute TTL only. There is no sliding expiration and no
// background sweep: a memory entry past its deadline is dropped when it is next read,
// and Redis expires keys on its own. Concurrent misses on the same key may each run the
// loader; the last writer wins.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/metrics"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a key to bytes store with per-entry absolute expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a named read-through cache over a Store.
type Cache struct {
	name   string
	store  Store
	ttl    time.Duration
	logger *logging.Logger
}

// New creates a cache. name labels metrics and logs.
func New(name string, store Store, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{name: name, store: store, ttl: ttl, logger: logger}
}

// TTL returns the absolute lifetime of entries written by this cache.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetOrLoad returns the cached value for key, or calls load and caches its result.
// Store failures degrade to a miss so an unavailable cache never fails the caller.
// Loader errors are returned and nothing is cached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if data, err := c.store.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.CacheLookupsTotal.WithLabelValues(c.name, "hit").Inc()
			return v, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "cache", c.name, "key", key)
	} else if !errors.Is(err, ErrMiss) {
		c.logger.WarnContext(ctx, "cache read failed", "cache", c.name, logging.Error(err))
	}

	metrics.CacheLookupsTotal.WithLabelValues(c.name, "miss").Inc()

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "cache", c.name, logging.Error(err))
		return v, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "cache", c.name, logging.Error(err))
	}

	return v, nil
}
