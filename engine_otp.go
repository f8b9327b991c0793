package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwestby/authcore/otp"
)

// RequestOTP issues a one-time code for the address and delivers it out of
// band. Issuance is rate limited per email (and per IP when the context
// carries one) independently of the per-code attempt counter, so request
// flooding and guess flooding are throttled separately.
//
// For password-reset requests against an unknown address the call succeeds
// without sending anything, keeping responses symmetric with known
// addresses.
func (e *Engine) RequestOTP(ctx context.Context, email string, typ OTPType) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = otp.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	window := time.Hour
	if _, err := e.checkWindow(ctx, "otp:"+string(typ)+":"+email, e.config.OTP.RequestsPerHour, window, "otp-request"); err != nil {
		e.metricInc(MetricOTPRateLimited)
		return err
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if _, err := e.checkWindow(ctx, "otp:ip:"+ip, e.config.OTP.RequestsPerHour, window, "otp-request"); err != nil {
			e.metricInc(MetricOTPRateLimited)
			return err
		}
	}

	user, err := e.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user == nil && typ == OTPPasswordReset {
		e.log.Info(ctx, "password reset requested for unknown address", "email", email)
		return nil
	}

	code, err := e.otp.Create(ctx, email, typ, e.otpTTL(typ), otp.Metadata{
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})
	if err != nil {
		return e.mapOTPErr(err)
	}

	name := ""
	if user != nil {
		name = user.Username
	}
	if e.mailer != nil {
		if err := e.mailer.SendOTP(ctx, email, name, code, typ); err != nil {
			e.log.Error(ctx, "otp delivery failed", "email", email, "type", string(typ), "error", err)
			return fmt.Errorf("%w: %v", ErrMailDelivery, err)
		}
	}

	e.metricInc(MetricOTPIssued)
	e.emit(ctx, AuditEvent{EventType: AuditOTPIssued, Email: email, Success: true, Metadata: map[string]string{"type": string(typ)}})
	return nil
}

// VerifyOTP checks a code and applies lockout bookkeeping to the credential
// record. Policy outcomes (wrong code, exhausted, no valid code) live in the
// result; the error is reserved for validation and backend failures.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string, typ OTPType) (*OTPResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = otp.NormalizeEmail(email)
	if email == "" || !validCodeShape(code) {
		return nil, ErrInvalidInput
	}

	user, err := e.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if user != nil && e.lockout.IsLocked(user.Security, now) {
		e.emit(ctx, AuditEvent{EventType: AuditOTPFailed, Email: email, Error: "account locked"})
		return nil, ErrAccountLocked
	}

	result, err := e.otp.Verify(ctx, email, code, typ)
	if err != nil {
		return nil, e.mapOTPErr(err)
	}

	if result.Success {
		if user != nil {
			e.lockout.RecordOTPSuccess(&user.Security)
			if typ == OTPEmailVerification {
				user.Security.EmailVerified = true
			}
			if err := e.saveUser(ctx, user); err != nil {
				return nil, err
			}
		}
		e.metricInc(MetricOTPVerified)
		e.emit(ctx, AuditEvent{EventType: AuditOTPVerified, Email: email, Success: true, Metadata: map[string]string{"type": string(typ)}})
		return result, nil
	}

	if user != nil {
		locked := e.lockout.RecordOTPFailure(&user.Security, now)
		if err := e.saveUser(ctx, user); err != nil {
			return nil, err
		}
		if locked {
			e.metricInc(MetricAccountLocked)
			e.emit(ctx, AuditEvent{EventType: AuditAccountLocked, UserID: user.ID})
		}
	}
	e.metricInc(MetricOTPFailed)
	e.emit(ctx, AuditEvent{EventType: AuditOTPFailed, Email: email, Error: result.Message})
	return result, nil
}

// RequestPasswordReset issues a password-reset code (15 minute default TTL).
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	return e.RequestOTP(ctx, email, OTPPasswordReset)
}

// ConfirmPasswordReset verifies a reset code and installs the new password.
// The hash, cleared OTP state, and reset lockout counters land on the record
// in a single save.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	result, err := e.VerifyOTP(ctx, email, code, OTPPasswordReset)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrCodeInvalid, result.Message)
	}

	user, err := e.findUser(ctx, otp.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrCodeInvalid
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user.PasswordHash = hash
	user.Security.ClearOTPState()
	e.lockout.RecordLoginSuccess(&user.Security)
	if err := e.saveUser(ctx, user); err != nil {
		return err
	}

	e.metricInc(MetricPasswordReset)
	e.emit(ctx, AuditEvent{EventType: AuditPasswordReset, UserID: user.ID, Success: true})
	return nil
}

func (e *Engine) otpTTL(typ OTPType) time.Duration {
	if typ == OTPPasswordReset {
		return time.Duration(e.config.OTP.ResetExpiryMinutes) * time.Minute
	}
	return time.Duration(e.config.OTP.ExpiryMinutes) * time.Minute
}

func (e *Engine) mapOTPErr(err error) error {
	if errors.Is(err, otp.ErrStoreUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// validCodeShape rejects anything that is not exactly 6 ASCII digits before
// touching the store.
func validCodeShape(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
