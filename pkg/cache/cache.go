package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for cache operations.
type Cache interface {
	// Get retrieves a value from cache into dest.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key from cache.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache is available.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// Nop is a Cache that stores nothing. It backs deployments without Redis.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (*Nop) Get(ctx context.Context, key string, dest interface{}) error { return ErrCacheMiss }

func (*Nop) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (*Nop) Delete(ctx context.Context, key string) error { return nil }

func (*Nop) Ping(ctx context.Context) error { return nil }

func (*Nop) Close() error { return nil }
