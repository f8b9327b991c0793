package authcore

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mwestby/authcore/otp"
)

// RegisterRequest is the input for [Engine.Register]. Role defaults to
// "user" when empty.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
	Role     string
}

// Register creates a credential record, sends the welcome email, and issues
// an email-verification code. Welcome and verification delivery problems are
// reported through the result and logs rather than failing the created
// account.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email := otp.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") || req.Username == "" {
		return nil, ErrInvalidInput
	}

	if _, err := e.checkWindow(ctx, "register:"+registerScope(ctx, email), e.config.RateLimit.LoginMaxRequests, e.config.RateLimit.LoginWindow, "register"); err != nil {
		return nil, err
	}

	existing, err := e.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing == nil && req.Username != email {
		if existing, err = e.findUser(ctx, req.Username); err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrInvalidInput
	}

	role := req.Role
	if role == "" {
		role = "user"
	}

	user := &UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     req.Username,
		Role:         role,
		PasswordHash: hash,
	}
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}

	e.metricInc(MetricAccountCreated)
	e.emit(ctx, AuditEvent{EventType: AuditAccountCreated, UserID: user.ID, Email: email, Success: true})

	result := &RegisterResult{User: user}
	if e.mailer != nil {
		if err := e.mailer.SendWelcome(ctx, email, user.Username, role); err != nil {
			e.log.Error(ctx, "welcome delivery failed", "email", email, "error", err)
		} else {
			result.WelcomeSent = true
		}
	}

	if err := e.RequestOTP(ctx, email, OTPEmailVerification); err != nil {
		// Account creation already succeeded; the caller can re-request a
		// code through the normal flow.
		e.log.Warn(ctx, "verification code issuance failed after registration", "email", email, "error", err)
	}

	return result, nil
}

// registerScope prefers the caller IP for the sign-up window so one address
// cannot spray registrations across many emails.
func registerScope(ctx context.Context, email string) string {
	if ip := clientIPFromContext(ctx); ip != "" {
		return "ip:" + ip
	}
	return email
}
