package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mwestby/authcore/cache"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := cache.NewClientWithBackend(cache.NewRedisBackend(redis.NewClient(&redis.Options{Addr: mr.Addr()})), nil)
	return New(client, nil), mr
}

func TestLimiterWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result, err := limiter.Check(ctx, "login:alice", 5, time.Minute)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d denied, want allowed", i)
		}
		if result.Remaining != 5-i {
			t.Fatalf("request %d remaining = %d, want %d", i, result.Remaining, 5-i)
		}
	}

	result, err := limiter.Check(ctx, "login:alice", 5, time.Minute)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatal("6th request allowed, want denied")
	}
	if result.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", result.Remaining)
	}
	if !result.ResetAt.After(time.Now()) {
		t.Fatalf("ResetAt = %v, want future", result.ResetAt)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := limiter.Check(ctx, "login:alice", 5, time.Minute); err != nil {
			t.Fatalf("check: %v", err)
		}
	}

	mr.FastForward(2 * time.Minute)

	result, err := limiter.Check(ctx, "login:alice", 5, time.Minute)
	if err != nil {
		t.Fatalf("check after window: %v", err)
	}
	if !result.Allowed || result.Remaining != 4 {
		t.Fatalf("fresh window: allowed=%v remaining=%d", result.Allowed, result.Remaining)
	}
}

func TestLimiterIdentifiersIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, "login:alice", 3, time.Minute); err != nil {
			t.Fatalf("check: %v", err)
		}
	}

	result, err := limiter.Check(ctx, "login:bob", 3, time.Minute)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Allowed || result.Remaining != 2 {
		t.Fatalf("bob's window affected by alice's: allowed=%v remaining=%d", result.Allowed, result.Remaining)
	}
}

func TestLimiterReset(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, "login:alice", 3, time.Minute); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	if err := limiter.Reset(ctx, "login:alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	result, err := limiter.Check(ctx, "login:alice", 3, time.Minute)
	if err != nil {
		t.Fatalf("check after reset: %v", err)
	}
	if !result.Allowed || result.Remaining != 2 {
		t.Fatalf("window not cleared: allowed=%v remaining=%d", result.Allowed, result.Remaining)
	}
}

func TestLimiterFailsOpenWhenCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.NewClientWithBackend(cache.NewRedisBackend(redis.NewClient(&redis.Options{Addr: mr.Addr()})), nil)
	limiter := New(client, nil)
	mr.Close()

	result, err := limiter.Check(context.Background(), "login:alice", 5, time.Minute)
	if err != nil {
		t.Fatalf("check during outage: %v", err)
	}
	if !result.Allowed {
		t.Fatal("request denied during cache outage, want fail-open")
	}
	if !result.FailedOpen {
		t.Fatal("FailedOpen not reported")
	}
}
