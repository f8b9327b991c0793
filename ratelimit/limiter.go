// Package ratelimit implements fixed-window request limiting on top of the
// shared cache: one atomic increment per request, with the window TTL applied
// on the first hit only. Naive read-then-write counters lose updates between
// concurrent instances and must not be reintroduced here.
//
// # Failure policy
//
// When the cache is entirely unreachable the limiter FAILS OPEN: the request
// is allowed rather than blocking all traffic. This is a deliberate
// availability-over-strictness trade-off — brute-force protection is weakened
// for the duration of a cache outage. Callers can observe it through
// [Result.FailedOpen].
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/mwestby/authcore/cache"
	"github.com/mwestby/authcore/internal/logging"
)

const keyPrefix = "rl:"

// Result reports the outcome of a window check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time

	// FailedOpen is set when the request was allowed only because the cache
	// was unreachable.
	FailedOpen bool
}

// Limiter enforces per-identifier fixed windows.
type Limiter struct {
	cache *cache.Client
	log   logging.Logger
}

// New creates a [Limiter] backed by the shared cache client.
func New(c *cache.Client, log logging.Logger) *Limiter {
	if log == nil {
		log = logging.NewNop()
	}
	return &Limiter{cache: c, log: log}
}

// Check consumes one request from the identifier's window and reports whether
// it stayed within maxRequests. The identifier should compose the caller
// address and target route, e.g. "203.0.113.7:otp-request".
func (l *Limiter) Check(ctx context.Context, identifier string, maxRequests int, window time.Duration) (*Result, error) {
	key := keyPrefix + identifier

	count, err := l.cache.Increment(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			l.log.Warn(ctx, "rate limiter failing open: cache unreachable", "identifier", identifier, "error", err)
			return &Result{Allowed: true, Remaining: maxRequests, ResetAt: time.Now().Add(window), FailedOpen: true}, nil
		}
		return nil, err
	}

	// First hit in a fresh window owns setting the TTL.
	if count == 1 {
		if _, err := l.cache.SetExpiry(ctx, key, window); err != nil {
			if errors.Is(err, cache.ErrUnavailable) {
				l.log.Warn(ctx, "rate limiter failing open: cache unreachable", "identifier", identifier, "error", err)
				return &Result{Allowed: true, Remaining: maxRequests, ResetAt: time.Now().Add(window), FailedOpen: true}, nil
			}
			return nil, err
		}
	}

	resetAt := time.Now().Add(window)
	if ttl, err := l.cache.TTL(ctx, key); err == nil && ttl > 0 {
		resetAt = time.Now().Add(ttl)
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(maxRequests),
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the identifier's window, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.cache.Delete(ctx, keyPrefix+identifier)
}
