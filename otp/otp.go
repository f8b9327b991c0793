package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwestby/authcore/internal/logging"
)

// Type discriminates the purpose of a code. Records of different types never
// interact.
type Type string

const (
	// TypeEmailVerification proves control of an email address at sign-up.
	TypeEmailVerification Type = "email-verification"
	// TypePasswordReset authorizes setting a new password.
	TypePasswordReset Type = "password-reset"
	// TypeTwoFactor is a login second factor delivered out of band.
	TypeTwoFactor Type = "two-factor"
)

const (
	// DefaultMaxAttempts is the verification attempt ceiling per record.
	DefaultMaxAttempts = 5
	codeDigits         = 6
	codeSpace          = 1000000 // 10^codeDigits
)

// Record is one issued code. Code carries `json:"-"` so the plaintext never
// leaks through serialized representations.
type Record struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	Type      Type      `json:"type"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
	Verified  bool      `json:"verified"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Metadata is optional request provenance stored alongside a record.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// VerifyResult is the caller-facing outcome of a verification attempt.
// AttemptsRemaining is -1 when the concept does not apply (success, no
// record, exhausted).
type VerifyResult struct {
	Success           bool
	Message           string
	AttemptsRemaining int
}

// Manager generates, persists, and verifies one-time codes.
type Manager struct {
	store       Store
	log         logging.Logger
	maxAttempts int
	now         func() time.Time
}

// NewManager creates a [Manager] over the given store. maxAttempts <= 0
// selects [DefaultMaxAttempts].
func NewManager(store Store, maxAttempts int, log logging.Logger) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		store:       store,
		log:         log,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Create purges stale records for (email, type), persists a fresh code with
// the given TTL, and returns the plaintext for out-of-band delivery.
func (m *Manager) Create(ctx context.Context, email string, typ Type, ttl time.Duration, meta Metadata) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("otp: empty email")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	if err := m.store.PurgeStale(ctx, email, typ, m.maxAttempts); err != nil {
		return "", err
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("otp: code generation: %w", err)
	}

	now := m.now()
	record := &Record{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		Type:      typ,
		ExpiresAt: now.Add(ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, record); err != nil {
		return "", err
	}

	m.log.Info(ctx, "otp issued", "email", email, "type", string(typ), "expiresAt", record.ExpiresAt)
	return code, nil
}

// Verify checks the provided code against the most recent active record.
// A missing or expired record reports "no valid code" rather than "wrong
// code" so callers cannot probe which codes exist. Errors are returned only
// for store failures; policy outcomes live in the result.
func (m *Manager) Verify(ctx context.Context, email, code string, typ Type) (*VerifyResult, error) {
	email = NormalizeEmail(email)

	record, err := m.store.FindActive(ctx, email, typ)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &VerifyResult{Success: false, Message: "no valid code found, request a new one", AttemptsRemaining: -1}, nil
		}
		return nil, err
	}

	if record.Attempts >= m.maxAttempts {
		return &VerifyResult{Success: false, Message: "code attempts exhausted, request a new one", AttemptsRemaining: -1}, nil
	}

	record.Attempts++

	if codesEqual(record.Code, code) {
		record.Verified = true
		if err := m.store.Update(ctx, record); err != nil {
			return nil, err
		}
		m.log.Info(ctx, "otp verified", "email", email, "type", string(typ))
		return &VerifyResult{Success: true, Message: "code verified", AttemptsRemaining: -1}, nil
	}

	// Final failed attempt: force-expire so the record can never be revived.
	if record.Attempts >= m.maxAttempts {
		record.ExpiresAt = m.now()
	}
	if err := m.store.Update(ctx, record); err != nil {
		return nil, err
	}

	remaining := m.maxAttempts - record.Attempts
	if remaining < 0 {
		remaining = 0
	}
	m.log.Warn(ctx, "otp mismatch", "email", email, "type", string(typ), "attempts", record.Attempts)
	return &VerifyResult{
		Success:           false,
		Message:           fmt.Sprintf("invalid code, %d attempts remaining", remaining),
		AttemptsRemaining: remaining,
	}, nil
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCode draws a uniformly random 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// codesEqual compares in constant time. Length mismatch short-circuits, which
// is fine: code length is public (always 6 digits).
func codesEqual(expected, provided string) bool {
	if len(expected) != len(provided) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
