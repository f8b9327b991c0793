// Package token mints and verifies the signed access/refresh token pairs that
// carry authenticated identity between requests.
//
// Access and refresh tokens minted together share one sessionId, enabling
// correlation and bulk revocation of a logical session; each token carries
// its own unique jti, which is the revocation key. Verification consults the
// blacklist BEFORE trusting any claim: a revoked jti is invalid regardless of
// signature validity.
//
// All verification failures collapse to [ErrInvalid] so callers cannot build
// an oracle from expired-vs-malformed-vs-revoked distinctions; the internal
// logger records the specific cause.
//
// Refresh tokens are NOT rotated on refresh by default — the same refresh
// token stays valid until its own expiry. This is a documented
// reduced-security choice; set [Config.RotateRefresh] to rotate on every
// refresh (the superseded refresh jti is revoked for its remaining lifetime).
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mwestby/authcore/blacklist"
	"github.com/mwestby/authcore/internal/logging"
)

// ErrInvalid is the single external verification failure. Expired, malformed,
// blacklisted, and badly signed tokens are indistinguishable to callers.
var ErrInvalid = errors.New("invalid token")

const refreshTokenType = "refresh"

// Config holds signing material and lifetimes.
type Config struct {
	// Secret is the HS256 signing key shared by all server instances.
	Secret []byte
	// Issuer is embedded and enforced for provenance checking.
	Issuer string
	// AccessTTL defaults to 15 minutes.
	AccessTTL time.Duration
	// RefreshTTL defaults to 7 days.
	RefreshTTL time.Duration
	// Leeway tolerates small clock skew during validation.
	Leeway time.Duration
	// RotateRefresh mints and returns a fresh refresh token on every
	// refresh, revoking the one presented.
	RotateRefresh bool
}

// AccessClaims is the payload of a short-lived access token. TokenType is
// empty on access tokens; a non-empty value means the token was minted for a
// different purpose and must not authenticate requests.
type AccessClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
	TokenType string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. It carries only
// what Refresh needs; fresh identity fields come from the caller's record
// lookup at refresh time.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Identity is the caller-supplied claim source for minting.
type Identity struct {
	UserID   string
	Email    string
	Username string
	Role     string
}

// Pair is an access/refresh pair minted together.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
	SessionID string
}

// Manager issues and verifies token pairs.
type Manager struct {
	config    Config
	blacklist *blacklist.Blacklist
	log       logging.Logger
	now       func() time.Time
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config, bl *blacklist.Blacklist, log logging.Logger) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token: secret must be at least 32 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token: issuer required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway")
	}
	if bl == nil {
		return nil, errors.New("token: blacklist required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{config: cfg, blacklist: bl, log: log, now: time.Now}, nil
}

// CreatePair mints a shared sessionId and two independently revocable tokens.
func (m *Manager) CreatePair(identity Identity) (*Pair, error) {
	sessionID := uuid.NewString()
	now := m.now()

	access := AccessClaims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Username:  identity.Username,
		Role:      identity.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	accessToken, err := m.sign(access)
	if err != nil {
		return nil, err
	}

	refreshToken, err := m.signRefresh(identity.UserID, sessionID, now)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.config.AccessTTL / time.Second),
		SessionID:    sessionID,
	}, nil
}

func (m *Manager) signRefresh(userID, sessionID string, now time.Time) (string, error) {
	refresh := RefreshClaims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
		},
	}
	return m.sign(refresh)
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("token: signing: %w", err)
	}
	return signed, nil
}

// VerifyAccess decodes without trust, consults the blacklist by jti, then
// cryptographically verifies signature, issuer, and expiry.
func (m *Manager) VerifyAccess(ctx context.Context, tokenStr string) (*AccessClaims, error) {
	jti, err := m.untrustedJTI(tokenStr, &AccessClaims{})
	if err != nil {
		return nil, err
	}
	if err := m.checkBlacklist(ctx, jti); err != nil {
		return nil, err
	}

	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		m.log.Warn(ctx, "access token rejected", "jti", jti, "error", err)
		return nil, ErrInvalid
	}
	// A refresh token carries the same signature and issuer; the type marker
	// is what keeps it from doubling as an access credential.
	if claims.TokenType != "" {
		m.log.Warn(ctx, "access token rejected: wrong token type", "jti", jti)
		return nil, ErrInvalid
	}
	return claims, nil
}

// VerifyRefresh verifies a refresh token exactly like an access token, plus
// the refresh type marker.
func (m *Manager) VerifyRefresh(ctx context.Context, tokenStr string) (*RefreshClaims, error) {
	jti, err := m.untrustedJTI(tokenStr, &RefreshClaims{})
	if err != nil {
		return nil, err
	}
	if err := m.checkBlacklist(ctx, jti); err != nil {
		return nil, err
	}

	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		m.log.Warn(ctx, "refresh token rejected", "jti", jti, "error", err)
		return nil, ErrInvalid
	}
	if claims.TokenType != refreshTokenType {
		m.log.Warn(ctx, "refresh token rejected: wrong token type", "jti", jti)
		return nil, ErrInvalid
	}
	return claims, nil
}

// Refresh mints a new access token bound to the presented refresh token's
// session. identity supplies the latest record fields for the new claims; its
// user must match the refresh token's subject.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, identity Identity) (*Pair, error) {
	claims, err := m.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if identity.UserID != claims.UserID {
		m.log.Warn(ctx, "refresh rejected: identity mismatch", "jti", claims.ID)
		return nil, ErrInvalid
	}

	now := m.now()
	access := AccessClaims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Username:  identity.Username,
		Role:      identity.Role,
		SessionID: claims.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}
	accessToken, err := m.sign(access)
	if err != nil {
		return nil, err
	}

	pair := &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.config.AccessTTL / time.Second),
		SessionID:    claims.SessionID,
	}

	if m.config.RotateRefresh {
		rotated, err := m.signRefresh(claims.UserID, claims.SessionID, now)
		if err != nil {
			return nil, err
		}
		if err := m.blacklist.Revoke(ctx, claims.ID, m.remaining(claims.ExpiresAt)); err != nil {
			return nil, err
		}
		pair.RefreshToken = rotated
	}

	return pair, nil
}

// Revoke blacklists a jti for the given remaining lifetime.
func (m *Manager) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return m.blacklist.Revoke(ctx, jti, ttl)
}

// RevokeToken extracts jti and expiry from a token string (no signature
// trust required — revoking a forged token is harmless) and blacklists it for
// its remaining lifetime. Already-expired tokens are a no-op.
func (m *Manager) RevokeToken(ctx context.Context, tokenStr string) error {
	claims := &RefreshClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return ErrInvalid
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalid
	}

	ttl := m.remaining(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.blacklist.Revoke(ctx, claims.ID, ttl)
}

func (m *Manager) remaining(expiresAt *jwt.NumericDate) time.Duration {
	if expiresAt == nil {
		return 0
	}
	return expiresAt.Time.Sub(m.now())
}

// untrustedJTI decodes the token without signature verification, solely to
// obtain the jti for the blacklist lookup.
func (m *Manager) untrustedJTI(tokenStr string, claims jwt.Claims) (string, error) {
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", ErrInvalid
	}
	var jti string
	switch c := claims.(type) {
	case *AccessClaims:
		jti = c.ID
	case *RefreshClaims:
		jti = c.ID
	}
	if jti == "" {
		return "", ErrInvalid
	}
	return jti, nil
}

// checkBlacklist fails closed: a revoked jti or an unreadable blacklist both
// reject the token. The degraded in-process cache keeps this path available
// during remote outages.
func (m *Manager) checkBlacklist(ctx context.Context, jti string) error {
	revoked, err := m.blacklist.IsRevoked(ctx, jti)
	if err != nil {
		m.log.Error(ctx, "blacklist check failed", "jti", jti, "error", err)
		return ErrInvalid
	}
	if revoked {
		m.log.Warn(ctx, "token rejected: revoked", "jti", jti)
		return ErrInvalid
	}
	return nil
}

// parse performs the trusted verification pass.
func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
