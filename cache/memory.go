package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// memoryBackend is the degraded in-process fallback. It is instance-scoped:
// counters, blacklist entries, and flags stored here are invisible to other
// server instances. Expired entries are reaped lazily on access.
type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// NewMemoryBackend creates an in-process [Backend]. It is exported for tests
// and for callers that explicitly want a single-instance deployment.
func NewMemoryBackend() Backend {
	return newMemoryBackend()
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// live returns the entry for key, reaping it first when expired.
// Callers must hold mu.
func (b *memoryBackend) live(key string) (memoryEntry, bool) {
	entry, ok := b.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !b.now().Before(entry.expiresAt) {
		delete(b.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (b *memoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.live(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

func (b *memoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = memoryEntry{value: value}
	return nil
}

func (b *memoryBackend) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = memoryEntry{value: value, expiresAt: b.now().Add(ttl)}
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}

func (b *memoryBackend) Increment(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.live(key)
	count := int64(0)
	if ok {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err == nil {
			count = parsed
		}
	}
	count++
	entry.value = strconv.FormatInt(count, 10)
	b.entries[key] = entry
	return count, nil
}

func (b *memoryBackend) SetExpiry(_ context.Context, key string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.live(key)
	if !ok {
		return false, nil
	}
	entry.expiresAt = b.now().Add(ttl)
	b.entries[key] = entry
	return true, nil
}

func (b *memoryBackend) TTL(_ context.Context, key string) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.live(key)
	if !ok {
		return 0, ErrKeyNotFound
	}
	if entry.expiresAt.IsZero() {
		return -1, nil
	}
	return entry.expiresAt.Sub(b.now()), nil
}

func (b *memoryBackend) Ping(context.Context) error {
	return nil
}

func (b *memoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make(map[string]memoryEntry)
	return nil
}
