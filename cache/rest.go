package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// restBackend speaks the HTTP command protocol exposed by hosted Redis
// offerings (single command per request, bearer-token auth, JSON result
// envelope). One http.Client is shared across all calls.
type restBackend struct {
	baseURL string
	token   string
	http    *http.Client
}

type restResult struct {
	Result *json.RawMessage `json:"result"`
	Error  string           `json:"error"`
}

func newRESTBackend(cfg Config) *restBackend {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &restBackend{
		baseURL: cfg.RESTURL,
		token:   cfg.RESTToken,
		http:    &http.Client{Timeout: timeout},
	}
}

// command issues a single cache command as path segments, e.g.
// ["set", key, value]. Segments are path-escaped individually.
func (b *restBackend) command(ctx context.Context, segments ...string) (*restResult, error) {
	path := b.baseURL
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var result restResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return &result, nil
}

func (r *restResult) stringValue() (string, bool) {
	if r.Result == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(*r.Result, &s); err == nil {
		return s, true
	}
	// Integer results (INCR, TTL) arrive as bare JSON numbers.
	var n int64
	if err := json.Unmarshal(*r.Result, &n); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func (r *restResult) intValue() (int64, error) {
	s, ok := r.stringValue()
	if !ok {
		return 0, fmt.Errorf("%w: empty numeric result", ErrUnavailable)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric result %q", ErrUnavailable, s)
	}
	return n, nil
}

func (b *restBackend) Get(ctx context.Context, key string) (string, error) {
	result, err := b.command(ctx, "get", key)
	if err != nil {
		return "", err
	}
	val, ok := result.stringValue()
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (b *restBackend) Set(ctx context.Context, key, value string) error {
	_, err := b.command(ctx, "set", key, value)
	return err
}

func (b *restBackend) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	_, err := b.command(ctx, "setex", key, strconv.FormatInt(seconds, 10), value)
	return err
}

func (b *restBackend) Delete(ctx context.Context, key string) error {
	_, err := b.command(ctx, "del", key)
	return err
}

func (b *restBackend) Increment(ctx context.Context, key string) (int64, error) {
	result, err := b.command(ctx, "incr", key)
	if err != nil {
		return 0, err
	}
	return result.intValue()
}

func (b *restBackend) SetExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	result, err := b.command(ctx, "expire", key, strconv.FormatInt(seconds, 10))
	if err != nil {
		return false, err
	}
	n, err := result.intValue()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *restBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	result, err := b.command(ctx, "ttl", key)
	if err != nil {
		return 0, err
	}
	n, err := result.intValue()
	if err != nil {
		return 0, err
	}
	if n == -2 {
		return 0, ErrKeyNotFound
	}
	if n < 0 {
		return time.Duration(n), nil
	}
	return time.Duration(n) * time.Second, nil
}

func (b *restBackend) Ping(ctx context.Context) error {
	result, err := b.command(ctx, "ping")
	if err != nil {
		return err
	}
	if s, ok := result.stringValue(); !ok || s != "PONG" {
		return fmt.Errorf("%w: unexpected ping reply", ErrUnavailable)
	}
	return nil
}

func (b *restBackend) Close() error {
	b.http.CloseIdleConnections()
	return nil
}
