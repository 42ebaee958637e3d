// Package cache implements the TTL cache-aside layer in front of the build backend.
//
// Values are stored as JSON copies in a pluggable Store, so a value read from
// the cache is never shared with another caller. An entry is never served after
// its expiry; a caller that asks for fresh data (see WithDiscard) forces the
// producer to run and overwrites the stored entry.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
)

// Entry is a stored cache value. A zero ExpiresAt never expires.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry must no longer be served at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is the key/value substrate backing the cache. Only its TTL contract is relied upon.
type Store interface {
	// Get returns the entry for key; ok is false when absent.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)

	// Set stores or replaces an entry.
	Set(ctx context.Context, entry Entry) error

	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Len returns the number of stored entries, expired or not.
	Len(ctx context.Context) (int, error)
}

// Purger is implemented by stores that keep expired entries until told otherwise.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Cache is the application-scoped result cache. It is safe for concurrent use.
type Cache struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	group  *singleflight.Group
	ttls   map[string]time.Duration
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces the wall clock, used by tests to expire entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithCoalescing makes concurrent misses on the same key share one producer call.
func WithCoalescing() Option {
	return func(c *Cache) {
		c.group = &singleflight.Group{}
	}
}

// WithTTLOverrides replaces the TTL of every fetch whose key is of the given
// kind ("status", "attributes", "monitor" and so on). Entries cached without
// expiry keep it.
func WithTTLOverrides(ttls map[string]time.Duration) Option {
	return func(c *Cache) {
		c.ttls = make(map[string]time.Duration, len(ttls))
		for kind, ttl := range ttls {
			if ttl > 0 {
				c.ttls[kind] = ttl
			}
		}
	}
}

// New creates a cache on top of store
func New(store Store, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store
func (c *Cache) Store() Store {
	return c.store
}

// Fetch returns the cached value for key or runs produce and stores its result for ttl.
// A ttl of zero or less stores the value without expiry. Producer errors are returned
// as-is and nothing is stored.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	metrics := observability.GetMetrics()
	kind := keyKind(key)
	if override, ok := c.ttls[kind]; ok && ttl > 0 {
		ttl = override
	}

	if !DiscardRequested(ctx) {
		if value, ok := lookup[T](ctx, c, key); ok {
			metrics.CacheRequests.WithLabelValues(kind, "hit").Inc()
			return value, nil
		}
		metrics.CacheRequests.WithLabelValues(kind, "miss").Inc()
	} else {
		metrics.CacheRequests.WithLabelValues(kind, "discard").Inc()
	}

	if c.group == nil {
		value, _, err := produceAndStore(ctx, c, key, ttl, produce)
		return value, err
	}
	return fetchShared(ctx, c, key, ttl, produce)
}

// sharedResult is what a coalesced producer hands to every waiting caller.
// data is nil when the value could not be encoded.
type sharedResult[T any] struct {
	data  []byte
	value T
}

// fetchShared runs one producer per key for all concurrent callers. The
// producer is detached from the cancellation of whichever caller started it;
// each caller stops waiting when its own ctx is done and decodes its own copy.
func fetchShared[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	ch := c.group.DoChan(key, func() (interface{}, error) {
		value, data, err := produceAndStore(context.WithoutCancel(ctx), c, key, ttl, produce)
		if err != nil {
			return nil, err
		}
		return sharedResult[T]{data: data, value: value}, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		shared := res.Val.(sharedResult[T])
		if shared.data == nil {
			return shared.value, nil
		}
		var value T
		if err := json.Unmarshal(shared.data, &value); err != nil {
			return zero, errors.NewPermanentf("decode shared cache value %s: %w", key, err)
		}
		return value, nil
	}
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var value T

	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		observability.GetMetrics().CacheErrors.WithLabelValues(keyKind(key), "get").Inc()
		c.logger.Warn("cache read failed, treating as miss",
			"key", key,
			"error", err)
		return value, false
	}
	if !ok || entry.Expired(c.now()) {
		return value, false
	}

	if err := json.Unmarshal(entry.Value, &value); err != nil {
		c.logger.Warn("discarding undecodable cache entry",
			"key", key,
			"error", err)
		return value, false
	}
	return value, true
}

// produceAndStore runs produce and stores the encoded result. The encoding is
// returned alongside the value; it is nil when the value could not be encoded.
func produceAndStore[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, []byte, error) {
	value, err := produce(ctx)
	if err != nil {
		var zero T
		return zero, nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("failed to encode cache value",
			"key", key,
			"error", err)
		return value, nil, nil
	}

	entry := Entry{Key: key, Value: data}
	if ttl > 0 {
		entry.ExpiresAt = c.now().Add(ttl)
	}

	if err := c.store.Set(ctx, entry); err != nil {
		observability.GetMetrics().CacheErrors.WithLabelValues(keyKind(key), "set").Inc()
		c.logger.Warn("cache write failed",
			"key", key,
			"error", err)
		return value, data, nil
	}
	observability.GetMetrics().CacheStores.WithLabelValues(keyKind(key)).Inc()
	return value, data, nil
}

// Invalidate drops every entry whose key starts with prefix
func (c *Cache) Invalidate(ctx context.Context, prefix string) (int, error) {
	n, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("cache invalidated",
		"prefix", prefix,
		"removed", n)
	return n, nil
}

// PurgeExpired removes expired entries when the store supports it
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	p, ok := c.store.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx, c.now())
}

// Len reports the number of stored entries
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

// keyKind is the part of the key before the first colon, used as metric label.
func keyKind(key string) string {
	kind, _, found := strings.Cut(key, ":")
	if !found {
		return "other"
	}
	return kind
}
