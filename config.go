package authcore

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mwestby/authcore/cache"
)

// Config groups the per-concern sections consumed by [Builder.Build].
// Instances are configured during initialization and treated as immutable
// afterwards.
type Config struct {
	Token     TokenConfig
	Cache     CacheConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig holds signing material and token lifetimes.
type TokenConfig struct {
	// Secret signs both token kinds (HS256). Shared across instances.
	Secret string `env:"AUTH_TOKEN_SECRET,unset"`
	// Issuer is embedded in every token and enforced on verification.
	Issuer string `env:"AUTH_TOKEN_ISSUER" envDefault:"authcore"`
	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"15m"`
	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"168h"`
	// Leeway tolerates clock skew during validation.
	Leeway time.Duration `env:"AUTH_TOKEN_LEEWAY" envDefault:"0"`
	// RotateRefresh replaces the refresh token on every refresh. Off by
	// default to match the base design; see the token package docs for the
	// trade-off.
	RotateRefresh bool `env:"AUTH_ROTATE_REFRESH" envDefault:"false"`
}

// CacheConfig mirrors cache.Config plus env bindings.
type CacheConfig struct {
	RESTURL             string        `env:"AUTH_CACHE_REST_URL"`
	RESTToken           string        `env:"AUTH_CACHE_REST_TOKEN"`
	RedisAddr           string        `env:"AUTH_CACHE_REDIS_ADDR"`
	RedisPassword       string        `env:"AUTH_CACHE_REDIS_PASSWORD"`
	RedisDB             int           `env:"AUTH_CACHE_REDIS_DB" envDefault:"0"`
	OpTimeout           time.Duration `env:"AUTH_CACHE_OP_TIMEOUT" envDefault:"5s"`
	AllowMemoryFallback bool          `env:"AUTH_CACHE_ALLOW_MEMORY_FALLBACK" envDefault:"true"`
}

// OTPConfig controls one-time code issuance and verification.
type OTPConfig struct {
	// ExpiryMinutes is the default code lifetime.
	ExpiryMinutes int `env:"AUTH_OTP_EXPIRY_MINUTES" envDefault:"10"`
	// ResetExpiryMinutes is the password-reset code lifetime.
	ResetExpiryMinutes int `env:"AUTH_OTP_RESET_EXPIRY_MINUTES" envDefault:"15"`
	// MaxAttempts is the verification ceiling per code.
	MaxAttempts int `env:"AUTH_OTP_MAX_ATTEMPTS" envDefault:"5"`
	// RequestsPerHour caps code issuance per email (and per IP when
	// provided) over a one-hour fixed window.
	RequestsPerHour int `env:"AUTH_OTP_REQUESTS_PER_HOUR" envDefault:"5"`
}

// RateLimitConfig bounds authentication attempts per identifier+route.
type RateLimitConfig struct {
	LoginMaxRequests int           `env:"AUTH_LOGIN_MAX_REQUESTS" envDefault:"10"`
	LoginWindow      time.Duration `env:"AUTH_LOGIN_WINDOW" envDefault:"15m"`
}

// LockoutConfig drives the account lockout policy on the credential record.
type LockoutConfig struct {
	// Threshold is the consecutive-failure count that triggers a lock.
	Threshold int `env:"AUTH_LOCKOUT_THRESHOLD" envDefault:"5"`
	// Duration is the lock window.
	Duration time.Duration `env:"AUTH_LOCKOUT_DURATION" envDefault:"30m"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"AUTH_AUDIT_ENABLED" envDefault:"false"`
	BufferSize int  `env:"AUTH_AUDIT_BUFFER" envDefault:"256"`
	DropIfFull bool `env:"AUTH_AUDIT_DROP_IF_FULL" envDefault:"true"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool `env:"AUTH_METRICS_ENABLED" envDefault:"true"`
}

// DefaultConfig returns the documented defaults without touching the
// environment.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			OpTimeout:           5 * time.Second,
			AllowMemoryFallback: true,
		},
		OTP: OTPConfig{
			ExpiryMinutes:      10,
			ResetExpiryMinutes: 15,
			MaxAttempts:        5,
			RequestsPerHour:    5,
		},
		RateLimit: RateLimitConfig{
			LoginMaxRequests: 10,
			LoginWindow:      15 * time.Minute,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadConfig reads the recognized AUTH_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants before Build wires anything.
func (c Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("config: token secret must be at least 32 bytes")
	}
	if c.Token.Issuer == "" {
		return errors.New("config: token issuer required")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("config: refresh lifetime must exceed access lifetime")
	}
	if c.OTP.ExpiryMinutes <= 0 || c.OTP.ResetExpiryMinutes <= 0 {
		return errors.New("config: otp expiries must be positive")
	}
	if c.OTP.MaxAttempts <= 0 {
		return errors.New("config: otp max attempts must be positive")
	}
	if c.Lockout.Threshold <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("config: lockout threshold and duration must be positive")
	}
	if c.RateLimit.LoginMaxRequests <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New("config: login rate limit must be positive")
	}
	return nil
}

func (c CacheConfig) toCache() cache.Config {
	return cache.Config{
		RESTURL:             c.RESTURL,
		RESTToken:           c.RESTToken,
		RedisAddr:           c.RedisAddr,
		RedisPassword:       c.RedisPassword,
		RedisDB:             c.RedisDB,
		OpTimeout:           c.OpTimeout,
		AllowMemoryFallback: c.AllowMemoryFallback,
	}
}
