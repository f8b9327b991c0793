// Package blacklist records revoked token identifiers (jti) in the shared
// cache. A key's mere presence means revoked; entries carry a TTL equal to
// the remaining lifetime of the token they revoke, so the set never grows
// past the live token horizon.
package blacklist

import (
	"context"
	"errors"
	"time"

	"github.com/mwestby/authcore/cache"
)

const (
	keyPrefix = "bl:"
	sentinel  = "1"
)

// Blacklist is the revocation set consulted on every token verification.
// Cross-instance consistency comes from the shared cache; in degraded cache
// mode entries are instance-local only.
type Blacklist struct {
	cache *cache.Client
}

// New creates a [Blacklist] on top of the shared cache client.
func New(c *cache.Client) *Blacklist {
	return &Blacklist{cache: c}
}

// Revoke inserts jti with the given TTL. Zero or negative TTLs are clamped to
// one second so a revocation is never silently dropped.
func (b *Blacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("blacklist: empty jti")
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return b.cache.SetWithExpiry(ctx, keyPrefix+jti, sentinel, ttl)
}

// IsRevoked reports whether jti is present in the revocation set.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := b.cache.Get(ctx, keyPrefix+jti)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
