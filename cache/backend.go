package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned by Get and TTL when the key does not exist.
	ErrKeyNotFound = errors.New("cache key not found")
	// ErrUnavailable indicates the cache backend could not be reached.
	ErrUnavailable = errors.New("cache backend unavailable")
	// ErrNoBackend indicates no backend could be established at construction.
	ErrNoBackend = errors.New("no cache backend reachable")
)

// Backend is the storage primitive shared by rate-limit counters, the token
// blacklist, and short-lived verification flags. All operations are
// context-bound; implementations must not retain ctx beyond the call.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Increment atomically increments the integer value stored at key,
	// creating it at 1 when absent. The post-increment value is returned.
	Increment(ctx context.Context, key string) (int64, error)
	// SetExpiry sets a TTL on an existing key. It reports false when the key
	// does not exist.
	SetExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime of key. Keys without an expiry
	// return a negative duration; missing keys return ErrKeyNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}
