// Package cache memoises retrieval responses in Redis and coalesces
// concurrent identical requests with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/redis"
)

const (
	keyPrefix = "retrieve:"
	// DefaultComputeTimeout bounds a shared computation once it is detached
	// from the caller that started it.
	DefaultComputeTimeout = 10 * time.Second
)

// Store is the byte store behind the cache. *pkgredis.Client satisfies it;
// Get must return pkgredis.ErrMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a cacheable request.
type Key struct {
	Query string
	Limit int
	Group string
	Types []string
	Debug bool
}

// QueryCache caches JSON-encodable values of type T.
type QueryCache[T any] struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	skip    func(T) bool
	timeout time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
}

func New[T any](store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache[T] {
	return &QueryCache[T]{
		store:   store,
		ttl:     ttl,
		metrics: m,
		timeout: DefaultComputeTimeout,
		logger:  logger.WithComponent("query-cache"),
	}
}

// ComputeTimeout sets the bound on a shared computation. d <= 0 keeps the
// default.
func (c *QueryCache[T]) ComputeTimeout(d time.Duration) *QueryCache[T] {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// SkipWhen sets a predicate for computed values that must not be stored,
// such as responses built while a provider was down.
func (c *QueryCache[T]) SkipWhen(fn func(T) bool) *QueryCache[T] {
	c.skip = fn
	return c
}

// Get returns the cached value for k. Store errors count as misses.
func (c *QueryCache[T]) Get(ctx context.Context, k Key) (T, bool) {
	var zero T
	key := BuildKey(k)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return zero, false
	}
	c.hit()
	c.logger.Debug("cache hit", "key", key)
	return v, true
}

// Set stores v under k. Failures are logged, not returned.
func (c *QueryCache[T]) Set(ctx context.Context, k Key, v T) {
	key := BuildKey(k)
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for k, or computes, stores and
// returns it. Concurrent callers with the same key share one computation.
// The computation is detached from the caller that started it and bounded
// by the compute timeout, so one caller going away does not fail the
// others; each caller still returns as soon as its own ctx ends. The bool
// reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, k Key, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	if v, ok := c.Get(ctx, k); ok {
		return v, true, nil
	}
	ch := c.group.DoChan(BuildKey(k), func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		v, err := compute(cctx)
		if err != nil {
			return v, err
		}
		if c.skip == nil || !c.skip(v) {
			c.Set(cctx, k, v)
		}
		return v, nil
	})
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

// Invalidate drops every cached response.
func (c *QueryCache[T]) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache[T]) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey hashes the normalised request into a Redis key.
func BuildKey(k Key) string {
	types := make([]string, len(k.Types))
	copy(types, k.Types)
	sort.Strings(types)
	raw := fmt.Sprintf("%s|limit=%d|group=%s|types=%s|debug=%t",
		normalizeQuery(k.Query), k.Limit, k.Group, strings.Join(types, ","), k.Debug)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery lowercases and collapses whitespace. Word order is kept
// since embedding and rerank scores depend on it.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
