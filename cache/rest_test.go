package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRESTServer speaks the single-command HTTP protocol used by the REST
// transport: one command per request as path segments, bearer auth, and a
// JSON result envelope.
type fakeRESTServer struct {
	mu      sync.Mutex
	values  map[string]string
	expiry  map[string]time.Time
	token   string
	rejects bool
}

func newFakeRESTServer(token string) *fakeRESTServer {
	return &fakeRESTServer{
		values: make(map[string]string),
		expiry: make(map[string]time.Time),
		token:  token,
	}
}

func (s *fakeRESTServer) live(key string) (string, bool) {
	if exp, ok := s.expiry[key]; ok && !time.Now().Before(exp) {
		delete(s.values, key)
		delete(s.expiry, key)
	}
	val, ok := s.values[key]
	return val, ok
}

func (s *fakeRESTServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.rejects || r.Header.Get("Authorization") != "Bearer "+s.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":"unauthorized"}`)
		return
	}

	segments := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		segments[i] = unescaped
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result any
	switch segments[0] {
	case "ping":
		result = "PONG"
	case "get":
		if val, ok := s.live(segments[1]); ok {
			result = val
		}
	case "set":
		s.values[segments[1]] = segments[2]
		delete(s.expiry, segments[1])
		result = "OK"
	case "setex":
		seconds, _ := strconv.Atoi(segments[2])
		s.values[segments[1]] = segments[3]
		s.expiry[segments[1]] = time.Now().Add(time.Duration(seconds) * time.Second)
		result = "OK"
	case "del":
		delete(s.values, segments[1])
		delete(s.expiry, segments[1])
		result = 1
	case "incr":
		val, _ := s.live(segments[1])
		n, _ := strconv.ParseInt(val, 10, 64)
		n++
		s.values[segments[1]] = strconv.FormatInt(n, 10)
		result = n
	case "expire":
		if _, ok := s.live(segments[1]); ok {
			seconds, _ := strconv.Atoi(segments[2])
			s.expiry[segments[1]] = time.Now().Add(time.Duration(seconds) * time.Second)
			result = 1
		} else {
			result = 0
		}
	case "ttl":
		if _, ok := s.live(segments[1]); !ok {
			result = -2
		} else if exp, ok := s.expiry[segments[1]]; ok {
			result = int64(time.Until(exp) / time.Second)
		} else {
			result = -1
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":"unknown command"}`)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func newTestRESTBackend(t *testing.T) (*restBackend, *fakeRESTServer) {
	t.Helper()
	fake := newFakeRESTServer("secret-token")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b := newRESTBackend(Config{RESTURL: srv.URL, RESTToken: "secret-token", OpTimeout: 2 * time.Second})
	return b, fake
}

func TestRESTBackendRoundTrip(t *testing.T) {
	b, _ := newTestRESTBackend(t)
	ctx := context.Background()

	if err := b.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := b.SetWithExpiry(ctx, "k", "v with spaces", time.Minute); err != nil {
		t.Fatalf("setex: %v", err)
	}
	val, err := b.Get(ctx, "k")
	if err != nil || val != "v with spaces" {
		t.Fatalf("get: %q %v", val, err)
	}

	ttl, err := b.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v, want (0, 1m]", ttl)
	}

	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestRESTBackendIncrementAndExpire(t *testing.T) {
	b, _ := newTestRESTBackend(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := b.Increment(ctx, "counter")
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("incr = %d, want %d", got, want)
		}
	}

	ok, err := b.SetExpiry(ctx, "counter", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expire: ok=%v err=%v", ok, err)
	}
	ok, err = b.SetExpiry(ctx, "missing", time.Minute)
	if err != nil {
		t.Fatalf("expire missing: %v", err)
	}
	if ok {
		t.Fatal("expire on missing key reported true")
	}
}

func TestRESTBackendAuthFailure(t *testing.T) {
	b, fake := newTestRESTBackend(t)
	fake.rejects = true

	if err := b.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
