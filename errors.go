package authcore

import "errors"

// Error surface follows a fixed taxonomy: validation, rate-limited,
// locked-account, invalid-credential/invalid-code, expired, and
// backend-unavailable. Responses stay generic and symmetric — the same error
// whether or not an account exists — so callers cannot enumerate users or
// probe which specific check failed. Internal logs carry the detail.
var (
	// ErrInvalidInput reports malformed input before any side effect.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers wrong password AND unknown identifier.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is reported generically; remaining attempt counts are
	// never revealed to an unauthenticated caller during a lockout.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountExists is returned by Register for duplicate identifiers.
	ErrAccountExists = errors.New("account already exists")
	// ErrRateLimited carries a retry-after hint via RateLimitResult.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenInvalid covers expired, malformed, revoked, and badly signed
	// tokens alike.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrCodeInvalid covers wrong, expired, and nonexistent one-time codes.
	ErrCodeInvalid = errors.New("invalid or expired code")
	// ErrStoreUnavailable indicates the persistent record store is
	// unreachable; the request fails rather than bypassing a check.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrMailDelivery reports a failed outbound email. Never silently
	// dropped: callers decide whether the flow can proceed.
	ErrMailDelivery = errors.New("mail delivery failed")
	// ErrEngineNotReady indicates use before Builder.Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
