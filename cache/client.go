package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mwestby/authcore/internal/logging"
)

// Config holds the connection settings for both remote transports and the
// degradation policy.
type Config struct {
	// RESTURL and RESTToken configure the HTTP transport. Empty RESTURL
	// disables it.
	RESTURL   string
	RESTToken string

	// RedisAddr configures the socket transport. Empty disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OpTimeout bounds every cache round-trip. Defaults to 5s.
	OpTimeout time.Duration

	// AllowMemoryFallback permits degrading to the in-process backend when
	// no remote transport is reachable. The fallback is not shared across
	// server instances.
	AllowMemoryFallback bool
}

// Client routes calls to the active [Backend]. Selection is REST-first, then
// socket, then (optionally) in-process memory. After a remote failure the
// next call re-probes and re-establishes a transport lazily.
type Client struct {
	cfg Config
	log logging.Logger

	mu        sync.Mutex
	backend   Backend
	degraded  bool
	needProbe bool

	// fallback is created once and reused across degradations so counters
	// and blacklist entries survive transient re-probe cycles.
	fallback *memoryBackend
}

// NewClient probes the configured transports and returns a ready client.
// It fails with [ErrNoBackend] when nothing is reachable and memory fallback
// is disabled.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	if log == nil {
		log = logging.NewNop()
	}

	c := &Client{cfg: cfg, log: log, fallback: newMemoryBackend()}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OpTimeout)
	defer cancel()

	backend, degraded, err := c.probe(ctx)
	if err != nil {
		return nil, err
	}
	c.backend = backend
	c.degraded = degraded
	return c, nil
}

// probe tries each configured transport in preference order and returns the
// first one whose ping succeeds.
func (c *Client) probe(ctx context.Context) (Backend, bool, error) {
	if c.cfg.RESTURL != "" {
		rest := newRESTBackend(c.cfg)
		if err := rest.Ping(ctx); err == nil {
			return rest, false, nil
		} else {
			c.log.Warn(ctx, "cache rest transport unreachable", "error", err)
		}
	}

	if c.cfg.RedisAddr != "" {
		rdb := newRedisBackend(c.cfg)
		if err := rdb.Ping(ctx); err == nil {
			return rdb, false, nil
		} else {
			c.log.Warn(ctx, "cache socket transport unreachable", "error", err)
			_ = rdb.Close()
		}
	}

	if c.cfg.AllowMemoryFallback {
		c.log.Warn(ctx, "cache degraded to in-process store; state is not shared across instances")
		return c.fallback, true, nil
	}

	return nil, false, ErrNoBackend
}

// current returns the active backend, re-probing first when the previous call
// observed a remote failure.
func (c *Client) current(ctx context.Context) Backend {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.needProbe {
		c.needProbe = false
		if backend, degraded, err := c.probe(ctx); err == nil {
			if !degraded && c.degraded {
				c.log.Info(ctx, "cache remote transport restored")
			}
			c.backend = backend
			c.degraded = degraded
		}
	}
	return c.backend
}

// observe records a remote failure so the next call re-establishes the
// transport. The error itself is always returned to the caller.
func (c *Client) observe(err error) {
	if err == nil || !errors.Is(err, ErrUnavailable) {
		return
	}
	c.mu.Lock()
	c.needProbe = true
	c.mu.Unlock()
}

// Degraded reports whether the client is currently serving from the
// in-process fallback.
func (c *Client) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.OpTimeout)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	val, err := c.current(ctx).Get(ctx, key)
	c.observe(err)
	return val, err
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	err := c.current(ctx).Set(ctx, key, value)
	c.observe(err)
	return err
}

func (c *Client) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	err := c.current(ctx).SetWithExpiry(ctx, key, value, ttl)
	c.observe(err)
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	err := c.current(ctx).Delete(ctx, key)
	c.observe(err)
	return err
}

func (c *Client) Increment(ctx context.Context, key string) (int64, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	count, err := c.current(ctx).Increment(ctx, key)
	c.observe(err)
	return count, err
}

func (c *Client) SetExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	ok, err := c.current(ctx).SetExpiry(ctx, key, ttl)
	c.observe(err)
	return ok, err
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	ttl, err := c.current(ctx).TTL(ctx, key)
	c.observe(err)
	return ttl, err
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	err := c.current(ctx).Ping(ctx)
	c.observe(err)
	return err
}

// Close releases the active backend. The in-process fallback is cleared as
// well.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.fallback.Close()
	if c.backend == nil || c.backend == Backend(c.fallback) {
		return nil
	}
	return c.backend.Close()
}

// NewClientWithBackend wires a caller-supplied backend directly, bypassing
// probing. Used by tests and by embedders that manage their own client.
func NewClientWithBackend(backend Backend, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNop()
	}
	return &Client{
		cfg:      Config{OpTimeout: 5 * time.Second},
		log:      log,
		backend:  backend,
		fallback: newMemoryBackend(),
	}
}
