package otp

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no active code exists for the (email, type) pair.
	ErrNotFound = errors.New("otp record not found")
	// ErrStoreUnavailable indicates the persistent record store is
	// unreachable. Callers must fail the request, never bypass the check.
	ErrStoreUnavailable = errors.New("otp store unavailable")
)

// Store is the persistent record store behind the manager. Implementations
// must provide per-record atomicity for Update; no multi-record transactional
// guarantees are assumed.
type Store interface {
	Create(ctx context.Context, record *Record) error

	// FindActive returns the most recent unverified, unexpired record for
	// (email, type), or ErrNotFound.
	FindActive(ctx context.Context, email string, typ Type) (*Record, error)

	// Update persists the mutable fields (attempts, verified, expiry) of an
	// existing record as a single write.
	Update(ctx context.Context, record *Record) error

	// PurgeStale deletes records for (email, type) that are verified,
	// expired, or have reached maxAttempts.
	PurgeStale(ctx context.Context, email string, typ Type, maxAttempts int) error
}
