package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/mwestby/authcore/token"
)

// Identity re-exports the claim source for token minting and refresh.
type Identity = token.Identity

// VerifyToken verifies an access token: blacklist first, then signature,
// issuer, and expiry. Every failure surfaces as [ErrTokenInvalid]; callers
// must not distinguish the cases in user-facing errors.
func (e *Engine) VerifyToken(ctx context.Context, accessToken string) (*AccessClaims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, e.mapTokenErr(err)
	}

	e.metricInc(MetricTokenVerified)
	return claims, nil
}

// Refresh verifies the refresh token and mints a new access token bound to
// the same session. latest supplies the current record fields for the new
// claims — pass them from a fresh store lookup, not from the old access
// token. When rotation is enabled the returned pair carries a new refresh
// token and the presented one is revoked.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, latest Identity) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	pair, err := e.tokens.Refresh(ctx, refreshToken, latest)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, e.mapTokenErr(err)
	}

	e.metricInc(MetricTokenRefreshed)
	e.emit(ctx, AuditEvent{EventType: AuditTokenRefreshed, UserID: latest.UserID, SessionID: pair.SessionID, Success: true})
	return pair, nil
}

// Revoke blacklists a jti for the given remaining token lifetime. Entries
// expire automatically, bounding blacklist growth to the live token horizon.
func (e *Engine) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := e.ready(); err != nil {
		return err
	}
	if jti == "" {
		return ErrInvalidInput
	}

	if err := e.tokens.Revoke(ctx, jti, ttl); err != nil {
		e.log.Error(ctx, "revocation failed", "jti", jti, "error", err)
		return err
	}

	e.metricInc(MetricTokenRevoked)
	e.emit(ctx, AuditEvent{EventType: AuditTokenRevoked, Success: true, Metadata: map[string]string{"jti": jti}})
	return nil
}

// mapTokenErr collapses token package failures into the engine taxonomy.
func (e *Engine) mapTokenErr(err error) error {
	if errors.Is(err, token.ErrInvalid) {
		return ErrTokenInvalid
	}
	return err
}
