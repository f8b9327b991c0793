package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/mwestby/authcore/blacklist"
	"github.com/mwestby/authcore/cache"
	"github.com/mwestby/authcore/internal/logging"
	"github.com/mwestby/authcore/otp"
	"github.com/mwestby/authcore/password"
	"github.com/mwestby/authcore/ratelimit"
	"github.com/mwestby/authcore/token"
)

// Engine is the credential core entry point. It is safe for concurrent use
// after [Builder.Build]; all fields are immutable afterwards.
type Engine struct {
	config    Config
	cache     *cache.Client
	limiter   *ratelimit.Limiter
	otp       *otp.Manager
	tokens    *token.Manager
	blacklist *blacklist.Blacklist
	lockout   LockoutPolicy
	hasher    *password.Hasher
	users     UserStore
	mailer    Mailer
	audit     *auditDispatcher
	metrics   *Metrics
	log       logging.Logger
	now       func() time.Time
}

// Close flushes and stops the audit dispatcher. The cache client is left to
// its owner when supplied via [Builder.WithCache].
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// CacheDegraded reports whether the shared cache is currently serving from
// the in-process fallback (state not shared across instances).
func (e *Engine) CacheDegraded() bool {
	if e == nil || e.cache == nil {
		return false
	}
	return e.cache.Degraded()
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	event.Timestamp = e.now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return nil
}

// findUser wraps store lookups so unavailability surfaces uniformly.
func (e *Engine) findUser(ctx context.Context, identifier string) (*UserRecord, error) {
	user, err := e.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		e.log.Error(ctx, "user store lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func (e *Engine) saveUser(ctx context.Context, user *UserRecord) error {
	if err := e.users.Save(ctx, user); err != nil {
		e.log.Error(ctx, "user store save failed", "userId", user.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// CheckRateLimit exposes the fixed-window limiter for caller-defined scopes
// (e.g. an HTTP handler throttling an endpoint the core does not own). The
// identifier should compose the caller address and target route. See the
// ratelimit package for the fail-open policy during cache outages.
func (e *Engine) CheckRateLimit(ctx context.Context, identifier string, maxRequests int, window time.Duration) (*RateLimitResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.limiter.Check(ctx, identifier, maxRequests, window)
}

// Lockout returns the configured lockout policy so callers can evaluate
// records they fetched themselves.
func (e *Engine) Lockout() LockoutPolicy {
	return e.lockout
}

// checkWindow runs one fixed-window check and maps a denial to
// [ErrRateLimited]. A failed-open result is allowed through and counted.
func (e *Engine) checkWindow(ctx context.Context, identifier string, max int, window time.Duration, audit string) (*RateLimitResult, error) {
	result, err := e.limiter.Check(ctx, identifier, max, window)
	if err != nil {
		return nil, err
	}
	if result.FailedOpen {
		e.metricInc(MetricRateLimitFailedOpen)
		e.emit(ctx, AuditEvent{EventType: AuditCacheDegraded, Error: "rate limiter failed open", Metadata: map[string]string{"scope": audit}})
	}
	if !result.Allowed {
		e.emit(ctx, AuditEvent{EventType: AuditRateLimited, Metadata: map[string]string{"identifier": identifier, "scope": audit}})
		return result, fmt.Errorf("%w: retry after %s", ErrRateLimited, time.Until(result.ResetAt).Round(time.Second))
	}
	return result, nil
}
