// Package rediscache provides a cache.Store implementation backed by Redis so
// multiple processes can share resolved URLs across batch runs.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unshorten/pkg/cache"
	"unshorten/pkg/domain"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces resolution entries within a shared Redis instance.
const keyPrefix = "unshorten:"

// Options configure the Redis connection and entry lifetime.
type Options struct {
	// Addr is the Redis server address, e.g. "localhost:6379".
	Addr string
	// Password for Redis authentication; empty for none.
	Password string
	// DB is the Redis database number.
	DB int
	// TTL is the lifetime of stored results. Zero means no expiration.
	TTL time.Duration
}

// Store persists resolution results in Redis as JSON values.
// It is safe for concurrent use.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Get returns the stored result for key, or nil, nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*domain.Result, error) {
	b, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not get cached result: %w", err)
	}

	var res domain.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("could not decode cached result: %w", err)
	}

	return &res, nil
}

// Set stores the result under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key string, result domain.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not encode result: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("could not set cached result: %w", err)
	}

	return nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close() //nolint: wrapcheck
}

// Ensure Store conforms to the cache.Store interface at compile time.
var _ cache.Store = (*Store)(nil)

// New constructs a Store connected to the Redis server described by opts.
func New(opts Options) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl: opts.TTL,
	}
}
