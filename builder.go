package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mwestby/authcore/blacklist"
	"github.com/mwestby/authcore/cache"
	"github.com/mwestby/authcore/internal/logging"
	"github.com/mwestby/authcore/otp"
	"github.com/mwestby/authcore/password"
	"github.com/mwestby/authcore/ratelimit"
	"github.com/mwestby/authcore/token"
)

// Logger re-exports the structured logging contract so embedders can supply
// their own implementation.
type Logger = logging.Logger

// NewSlogLogger wraps a *slog.Logger for injection via
// [Builder.WithLogger].
func NewSlogLogger(l *slog.Logger) Logger {
	return logging.NewSlogLogger(l)
}

// Builder assembles an [Engine]. Construction is allocation-only until
// Build, which probes the cache transports and validates configuration.
type Builder struct {
	config    Config
	cacheCli  *cache.Client
	otpStore  otp.Store
	userStore UserStore
	mailer    Mailer
	auditSink AuditSink
	log       Logger

	built bool
}

// New creates a [Builder] with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithCache supplies a pre-built cache client, bypassing transport probing.
func (b *Builder) WithCache(client *cache.Client) *Builder {
	b.cacheCli = client
	return b
}

// WithOTPStore supplies the persistent one-time code store.
func (b *Builder) WithOTPStore(store otp.Store) *Builder {
	b.otpStore = store
	return b
}

// WithUserStore supplies the credential record store collaborator.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithMailer supplies the outbound email collaborator.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink supplies the audit event receiver and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithLogger supplies the structured logger used for internal detail.
func (b *Builder) WithLogger(log Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration, establishes the cache transport, and
// wires the engine. A builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if b.otpStore == nil {
		return nil, errors.New("otp store required")
	}

	log := b.log
	if log == nil {
		log = logging.NewNop()
	}

	cacheCli := b.cacheCli
	if cacheCli == nil {
		var err error
		cacheCli, err = cache.NewClient(b.config.Cache.toCache(), log)
		if err != nil {
			return nil, err
		}
	}

	bl := blacklist.New(cacheCli)

	tokens, err := token.NewManager(token.Config{
		Secret:        []byte(b.config.Token.Secret),
		Issuer:        b.config.Token.Issuer,
		AccessTTL:     b.config.Token.AccessTTL,
		RefreshTTL:    b.config.Token.RefreshTTL,
		Leeway:        b.config.Token.Leeway,
		RotateRefresh: b.config.Token.RotateRefresh,
	}, bl, log)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.DefaultParams())
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:    b.config,
		cache:     cacheCli,
		limiter:   ratelimit.New(cacheCli, log),
		otp:       otp.NewManager(b.otpStore, b.config.OTP.MaxAttempts, log),
		tokens:    tokens,
		blacklist: bl,
		lockout:   NewLockoutPolicy(b.config.Lockout.Threshold, b.config.Lockout.Duration),
		hasher:    hasher,
		users:     b.userStore,
		mailer:    b.mailer,
		audit:     newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:   NewMetrics(b.config.Metrics),
		log:       log,
		now:       time.Now,
	}, nil
}
