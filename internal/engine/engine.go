// Package engine coordinates batch URL expansion. It applies the inclusion
// policy, deduplicates traversals through the resolution cache, and fans the
// remaining work out over a bounded pool of workers while preserving input
// order in the output.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"
	"unshorten/internal/config"
	"unshorten/internal/policy"
	"unshorten/pkg/cache"
	"unshorten/pkg/domain"
	"unshorten/pkg/logger"
	"unshorten/pkg/metrics"
	"unshorten/pkg/serrors"

	"go.uber.org/zap"
)

// DefaultConcurrency bounds simultaneous in-flight chains when no explicit
// limit is configured.
const DefaultConcurrency = 50

// Options configure batch scheduling. These settings are typically derived
// from application configuration.
type Options struct {
	// Concurrency is the maximum number of redirect chains in flight at once.
	// Zero means DefaultConcurrency.
	Concurrency int
	// ChainTimeout bounds one whole chain traversal, not a single hop.
	// Zero disables the per-chain deadline.
	ChainTimeout time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Concurrency:  cfg.Engine.Concurrency,
		ChainTimeout: cfg.Resolver.ChainTimeout,
	}
}

// engine is the concrete implementation of the Expander interface.
// It coordinates the policy, the cache, and the redirect follower.
type engine struct {
	options  Options
	policy   *policy.Policy
	cache    *cache.Cache
	follower Follower
	metrics  *metrics.Metrics
}

// ResolveBatch expands a batch of requests and returns exactly one result per
// request, index for index. Duplicate URLs in the batch are traversed once;
// the duplicates wait on the cache reservation and share the outcome.
func (e *engine) ResolveBatch(ctx context.Context, requests []domain.Request) []domain.Result {
	out := make([]domain.Result, len(requests))

	type job struct {
		idx int
		req domain.Request
	}

	workers := e.options.Concurrency
	if workers > len(requests) {
		workers = len(requests)
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				// each worker writes a distinct index, no lock needed
				out[jb.idx] = e.resolveOne(ctx, jb.req)
			}
		}()
	}

	for i, req := range requests {
		if ctx.Err() != nil {
			break
		}
		jobs <- job{idx: i, req: req}
	}
	close(jobs)
	wg.Wait()

	// a cancelled batch may leave undispatched slots; every request still
	// gets a result
	for i := range out {
		if out[i].Status == "" {
			out[i] = domain.Failed(domain.FailureTimeout, "")
		}
	}

	return out
}

// resolveOne produces the result for a single request: policy first, then the
// cache reservation protocol, and only then the network.
func (e *engine) resolveOne(ctx context.Context, req domain.Request) domain.Result {
	key, u, err := CacheKey(req.URL)
	if err != nil {
		logger.Debug(ctx, "rejecting malformed URL", zap.String("url", req.URL), zap.Error(err))
		e.metrics.Failure(ctx, domain.FailureMalformedURL)

		return domain.Failed(domain.FailureMalformedURL, "")
	}

	if d := e.policy.Decide(u, req.URL); !d.Include {
		e.metrics.Skip(ctx, d.Reason)

		return domain.Skipped(d.Reason)
	}

	hit, token := e.cache.GetOrReserve(ctx, key)
	switch {
	case hit != nil:
		e.metrics.CacheHit(ctx)

		return *hit
	case token == nil:
		// another request in flight for the same key; share its outcome
		res, err := e.cache.Wait(ctx, key)
		if err != nil {
			kind := domain.FailureTimeout
			if errors.Is(err, serrors.ErrCacheInconsistency) {
				kind = domain.FailureCacheInconsistency
			}
			logger.Warn(ctx, "could not wait for in-flight resolution",
				zap.String("key", key), zap.Error(err))
			e.metrics.Failure(ctx, kind)

			return domain.Failed(kind, "")
		}
		e.metrics.CacheHit(ctx)

		return *res
	default:
		return e.follow(ctx, token, req)
	}
}

// follow traverses the chain for a reservation the caller won and completes
// the reservation with the outcome. The per-chain deadline applies to the
// traversal only, not to waking waiters or writing the backing store.
func (e *engine) follow(ctx context.Context, token *cache.Token, req domain.Request) domain.Result {
	fctx := ctx
	if e.options.ChainTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, e.options.ChainTimeout)
		defer cancel()
	}

	start := time.Now()
	res := e.follower.Follow(fctx, req.URL, req.MaxDepth)
	e.metrics.Chain(ctx, res, time.Since(start))
	e.cache.Complete(ctx, token, res)

	return res
}

// New creates a new Expander backed by the provided policy, cache, and
// follower, configured with the given options.
func New(p *policy.Policy, c *cache.Cache, f Follower, m *metrics.Metrics, options Options) Expander {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}

	return &engine{
		options:  options,
		policy:   p,
		cache:    c,
		follower: f,
		metrics:  m,
	}
}
