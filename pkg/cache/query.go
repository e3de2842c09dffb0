package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

const defaultQueryTTL = 5 * time.Minute

// KeyFunc builds the cache key from the query parameters.
type KeyFunc func(params ...any) string

// QueryFunc loads the value from the backing store on a cache miss.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// CachedQuery wraps a repository query with read-through caching.
// Cache failures degrade to the underlying query and never surface
// to the caller.
type CachedQuery[T any] struct {
	cache     ICache
	keyFunc   KeyFunc
	queryFunc QueryFunc[T]
	ttl       time.Duration
	logPrefix string
}

// QueryOption customizes a CachedQuery.
type QueryOption[T any] func(*CachedQuery[T])

// WithTTL sets the cache entry lifetime.
func WithTTL[T any](ttl time.Duration) QueryOption[T] {
	return func(cq *CachedQuery[T]) {
		cq.ttl = ttl
	}
}

// WithLogPrefix tags cache log lines with the owning repository.
func WithLogPrefix[T any](prefix string) QueryOption[T] {
	return func(cq *CachedQuery[T]) {
		cq.logPrefix = prefix
	}
}

// NewCachedQuery builds a read-through cached query. queryFunc may be
// nil when the caller only needs Invalidate.
func NewCachedQuery[T any](cache ICache, keyFunc KeyFunc, queryFunc QueryFunc[T], opts ...QueryOption[T]) *CachedQuery[T] {
	cq := &CachedQuery[T]{
		cache:     cache,
		keyFunc:   keyFunc,
		queryFunc: queryFunc,
		ttl:       defaultQueryTTL,
	}
	for _, opt := range opts {
		opt(cq)
	}
	return cq
}

// Get returns the cached value, falling back to queryFunc on a miss
// and populating the cache with the result.
func (cq *CachedQuery[T]) Get(ctx context.Context, params ...any) (T, error) {
	var zero T
	key := cq.keyFunc(params...)

	if cq.cache != nil {
		raw, err := cq.cache.Get(ctx, key)
		if err == nil {
			var value T
			if uerr := sonic.UnmarshalString(raw, &value); uerr == nil {
				return value, nil
			}
			// A stale or corrupt entry falls through to the query.
			_ = cq.cache.Del(ctx, key)
		} else if !errors.Is(err, ErrCacheMiss) {
			logger.Warnw(cq.logPrefix+" cache read failed", "key", key, "error", err)
		}
	}

	if cq.queryFunc == nil {
		return zero, errors.New("cache: no query func configured")
	}
	value, err := cq.queryFunc(ctx)
	if err != nil {
		return zero, err
	}

	if cq.cache != nil {
		if raw, merr := sonic.MarshalString(value); merr == nil {
			if serr := cq.cache.Set(ctx, key, raw, cq.ttl); serr != nil {
				logger.Warnw(cq.logPrefix+" cache write failed", "key", key, "error", serr)
			}
		}
	}
	return value, nil
}

// Invalidate removes the cached entry for the given parameters.
func (cq *CachedQuery[T]) Invalidate(ctx context.Context, params ...any) error {
	if cq.cache == nil {
		return nil
	}
	return cq.cache.Del(ctx, cq.keyFunc(params...))
}
