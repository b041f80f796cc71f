// Package cache implements the resolution cache: an in-process map keyed by
// normalized URL with a reservation protocol that guarantees at most one
// redirect-chain traversal per distinct key, FIFO eviction for long-running
// processes, and an optional shared backing store (e.g. Redis).
package cache

import (
	"context"
	"fmt"
	"sync"
	"unshorten/pkg/domain"
	"unshorten/pkg/logger"
	"unshorten/pkg/serrors"

	"go.uber.org/zap"
)

// Store is an optional shared result store consulted on cache misses and
// populated on completion. Implementations return nil, nil when the key is
// absent. Store errors never fail a resolution; they degrade to a miss.
type Store interface {
	Get(ctx context.Context, key string) (*domain.Result, error)
	Set(ctx context.Context, key string, result domain.Result) error
}

// Options configure the cache.
type Options struct {
	// Capacity bounds the number of completed entries kept in memory.
	// Zero means unbounded.
	Capacity int
	// CacheFailures controls whether failed results are written to the backing
	// store. Failed results always stay in the in-memory map for the life of
	// the process so a batch never re-traverses a chain it already failed.
	CacheFailures bool
	// Store is the optional shared backing store. May be nil.
	Store Store
}

// Token proves its holder won the reservation for a key and must call
// Complete exactly once with the resolution outcome.
type Token struct {
	key  string
	used bool // guarded by the cache mutex
}

// Key returns the cache key this token reserves.
func (t *Token) Key() string { return t.key }

// entry is a single cache slot. A pending entry (result == nil) marks a
// resolution in progress; waiters block on done until it completes.
type entry struct {
	result  *domain.Result // nil while the reservation is pending
	done    chan struct{}  // closed when the entry completes
	waiters int            // goroutines currently blocked in Wait
	seq     uint64         // insertion counter, used only for FIFO eviction
}

// Cache is safe for concurrent use. A given key maps to at most one entry at
// any time and entries are write-once: the first completion wins.
type Cache struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
	order   []string // completed keys in insertion order, oldest first
	seq     uint64
}

// New creates an empty Cache with the provided options.
func New(opts Options) *Cache {
	return &Cache{
		opts:    opts,
		entries: make(map[string]*entry),
	}
}

// GetOrReserve atomically checks the key and returns one of:
//   - a non-nil result when the key is already resolved (hit),
//   - a non-nil token when the caller won the reservation and must resolve
//     the URL and call Complete,
//   - nil, nil when another caller holds the reservation; use Wait.
//
// When a backing store is configured, a reserving caller first consults it;
// a stored result completes the reservation immediately and is returned as a
// hit without any network work.
func (c *Cache) GetOrReserve(ctx context.Context, key string) (*domain.Result, *Token) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.result != nil {
			res := *e.result
			c.mu.Unlock()

			return &res, nil
		}
		c.mu.Unlock()

		// resolution in progress, caller should Wait
		return nil, nil
	}

	// reserve before consulting the store so concurrent callers for the same
	// key cannot start a second traversal in the meantime
	c.seq++
	c.entries[key] = &entry{done: make(chan struct{}), seq: c.seq}
	c.mu.Unlock()

	if c.opts.Store != nil {
		stored, err := c.opts.Store.Get(ctx, key)
		if err != nil {
			logger.Warn(ctx, "could not read backing store, treating as miss",
				zap.String("key", key), zap.Error(err))
		}
		if stored != nil {
			c.finish(ctx, key, *stored, false)

			return stored, nil
		}
	}

	return nil, &Token{key: key}
}

// Complete stores the final result under the reserved key and wakes any
// waiters. Completing the same token twice is a no-op logged as a consistency
// warning.
func (c *Cache) Complete(ctx context.Context, token *Token, result domain.Result) {
	if token == nil {
		return
	}

	c.mu.Lock()
	if token.used {
		c.mu.Unlock()
		logger.Warn(ctx, "cache reservation completed twice",
			zap.String("key", token.key),
			zap.Error(serrors.KindOnly(serrors.ErrCacheInconsistency)))

		return
	}
	token.used = true
	c.mu.Unlock()

	writeStore := result.Status != domain.StatusFailed || c.opts.CacheFailures
	c.finish(ctx, token.key, result, writeStore)
}

// Wait blocks until the pending reservation for key completes and returns its
// result, or fails when ctx is done first.
func (c *Cache) Wait(ctx context.Context, key string) (*domain.Result, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()

		return nil, serrors.With(serrors.ErrCacheInconsistency, "no reservation for key %q", key)
	}
	if e.result != nil {
		res := *e.result
		c.mu.Unlock()

		return &res, nil
	}
	e.waiters++
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		e.waiters--
		c.mu.Unlock()

		return nil, fmt.Errorf("waiting for resolution of %q: %w", key, ctx.Err())
	case <-e.done:
		c.mu.Lock()
		e.waiters--
		res := *e.result
		c.mu.Unlock()

		return &res, nil
	}
}

// Len returns the number of completed entries currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}

// finish transitions a pending entry to completed, wakes waiters, applies
// FIFO eviction, and optionally writes the result to the backing store.
func (c *Cache) finish(ctx context.Context, key string, result domain.Result, writeStore bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.result != nil {
		c.mu.Unlock()
		logger.Warn(ctx, "completion for unknown or already finished reservation",
			zap.String("key", key),
			zap.Error(serrors.KindOnly(serrors.ErrCacheInconsistency)))

		return
	}
	e.result = &result
	close(e.done)
	c.order = append(c.order, key)
	c.evictLocked()
	c.mu.Unlock()

	if writeStore && c.opts.Store != nil {
		if err := c.opts.Store.Set(ctx, key, result); err != nil {
			logger.Warn(ctx, "could not write backing store",
				zap.String("key", key), zap.Error(err))
		}
	}
}

// evictLocked drops the oldest completed entries while over capacity. Pending
// entries are not tracked in the insertion order and are therefore never
// evicted; an entry with active waiters is kept even when over capacity.
func (c *Cache) evictLocked() {
	if c.opts.Capacity <= 0 {
		return
	}

	for len(c.order) > c.opts.Capacity {
		key := c.order[0]
		e, ok := c.entries[key]
		if !ok {
			c.order = c.order[1:]

			continue
		}
		if e.waiters > 0 {
			// keep the entry until its waiters drain; the cache may exceed
			// capacity temporarily
			return
		}
		c.order = c.order[1:]
		delete(c.entries, key)
	}
}
