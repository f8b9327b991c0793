package authcore

import (
	"context"
	"time"

	"github.com/mwestby/authcore/otp"
	"github.com/mwestby/authcore/ratelimit"
	"github.com/mwestby/authcore/token"
)

// SecurityMetadata is the security block nested on a credential record. The
// core reads and writes it; the surrounding store owns persistence.
//
// LockedUntil is either nil or strictly in the future while a lock is
// active; once the timestamp passes the lock is implicitly inactive. Lock
// checks always compare against the current clock — never a cached boolean.
type SecurityMetadata struct {
	LoginAttempts int        `json:"loginAttempts"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
	OTPAttempts   int        `json:"otpAttempts"`
	EmailVerified bool       `json:"emailVerified"`
}

// ClearOTPState resets the OTP-related fields as one explicit mutation, so a
// successful verification updates the record in a single save rather than
// several independent field writes.
func (m *SecurityMetadata) ClearOTPState() {
	m.OTPAttempts = 0
}

// UserRecord is the slice of the external user document the core touches.
type UserRecord struct {
	ID           string
	Email        string
	Username     string
	Role         string
	PasswordHash string
	Security     SecurityMetadata
}

// UserStore is the persistent record store collaborator. The core assumes
// at-least read/write/delete on single records and no multi-record
// transactional guarantees. Implementations must return [ErrStoreUnavailable]
// (wrapped is fine) when the backend is unreachable, and nil record with nil
// error when no record matches.
type UserStore interface {
	FindByIdentifier(ctx context.Context, emailOrUsername string) (*UserRecord, error)
	Save(ctx context.Context, record *UserRecord) error
	DeleteByID(ctx context.Context, id string) error
}

// Mailer is the outbound email collaborator. Delivery failures are reported
// to the caller — never silently dropped — but the core does not retry.
type Mailer interface {
	SendOTP(ctx context.Context, email, name, code string, purpose otp.Type) error
	SendWelcome(ctx context.Context, email, name, role string) error
}

// TokenPair re-exports the minted access/refresh pair.
type TokenPair = token.Pair

// AccessClaims re-exports the verified access token payload.
type AccessClaims = token.AccessClaims

// RefreshClaims re-exports the verified refresh token payload.
type RefreshClaims = token.RefreshClaims

// OTPResult re-exports the caller-facing OTP verification outcome.
type OTPResult = otp.VerifyResult

// OTPType re-exports the code purpose discriminator.
type OTPType = otp.Type

// Re-exported OTP purposes.
const (
	OTPEmailVerification = otp.TypeEmailVerification
	OTPPasswordReset     = otp.TypePasswordReset
	OTPTwoFactor         = otp.TypeTwoFactor
)

// RateLimitResult re-exports the window check outcome, including the
// retry-after hint (ResetAt) surfaced alongside [ErrRateLimited].
type RateLimitResult = ratelimit.Result

// AuthResult is returned by [Engine.Authenticate] on success.
type AuthResult struct {
	User   *UserRecord
	Tokens *TokenPair
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	User *UserRecord
	// WelcomeSent reports whether the welcome email was delivered.
	WelcomeSent bool
}
