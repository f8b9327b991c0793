package authcore

import (
	"context"
)

// Authenticate verifies an identifier/password pair and mints a token pair.
//
// The flow is: rate limit → lockout check → password verification → lockout
// bookkeeping → token issuance. Unknown identifiers and wrong passwords are
// indistinguishable to the caller ([ErrInvalidCredentials]); a locked account
// reports [ErrAccountLocked] with no remaining-attempt detail.
func (e *Engine) Authenticate(ctx context.Context, identifier, plaintext string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if identifier == "" || plaintext == "" {
		return nil, ErrInvalidInput
	}

	if _, err := e.checkWindow(ctx, "login:"+identifier, e.config.RateLimit.LoginMaxRequests, e.config.RateLimit.LoginWindow, "login"); err != nil {
		e.metricInc(MetricLoginRateLimited)
		return nil, err
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if _, err := e.checkWindow(ctx, "login:ip:"+ip, e.config.RateLimit.LoginMaxRequests, e.config.RateLimit.LoginWindow, "login"); err != nil {
			e.metricInc(MetricLoginRateLimited)
			return nil, err
		}
	}

	user, err := e.findUser(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a hash verification anyway so unknown identifiers cost the
		// same as wrong passwords.
		_, _ = e.hasher.Verify(plaintext, dummyHash)
		e.metricInc(MetricLoginFailure)
		e.emit(ctx, AuditEvent{EventType: AuditLoginFailure, Email: identifier, Error: "unknown identifier"})
		return nil, ErrInvalidCredentials
	}

	now := e.now()
	if e.lockout.IsLocked(user.Security, now) {
		e.emit(ctx, AuditEvent{EventType: AuditLoginFailure, UserID: user.ID, Error: "account locked"})
		return nil, ErrAccountLocked
	}

	match, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		e.log.Error(ctx, "password hash verification failed", "userId", user.ID, "error", err)
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	if !match {
		locked := e.lockout.RecordLoginFailure(&user.Security, now)
		if saveErr := e.saveUser(ctx, user); saveErr != nil {
			return nil, saveErr
		}
		e.metricInc(MetricLoginFailure)
		e.emit(ctx, AuditEvent{EventType: AuditLoginFailure, UserID: user.ID, Error: "wrong password"})
		if locked {
			e.metricInc(MetricAccountLocked)
			e.emit(ctx, AuditEvent{EventType: AuditAccountLocked, UserID: user.ID})
		}
		return nil, ErrInvalidCredentials
	}

	// Only write back when there is stale failure state to clear.
	if user.Security.LoginAttempts > 0 || user.Security.LockedUntil != nil {
		e.lockout.RecordLoginSuccess(&user.Security)
		if err := e.saveUser(ctx, user); err != nil {
			return nil, err
		}
	}

	pair, err := e.tokens.CreatePair(Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		e.log.Error(ctx, "token pair creation failed", "userId", user.ID, "error", err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emit(ctx, AuditEvent{EventType: AuditLoginSuccess, UserID: user.ID, SessionID: pair.SessionID, Success: true})
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Logout revokes the presented tokens for their remaining lifetimes. The
// refresh token may be empty when the caller only holds an access token.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if accessToken == "" {
		return ErrInvalidInput
	}

	if err := e.tokens.RevokeToken(ctx, accessToken); err != nil {
		return e.mapTokenErr(err)
	}
	if refreshToken != "" {
		if err := e.tokens.RevokeToken(ctx, refreshToken); err != nil {
			return e.mapTokenErr(err)
		}
	}

	e.metricInc(MetricTokenRevoked)
	e.emit(ctx, AuditEvent{EventType: AuditLogout, Success: true})
	return nil
}

// dummyHash is a valid Argon2id encoding of a random throwaway password,
// used to equalize timing for unknown identifiers.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$RWhEbmFQcVhZd1lWbE5nWmNJcUJXdGpMQ0dVc1RkS04"
