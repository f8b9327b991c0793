package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process [Store] for tests and single-instance
// embedding. It is not durable across restarts and must not back a
// production deployment where codes have to survive a process cycle.
type MemoryStore struct {
	mu      sync.Mutex
	records []*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.records = append(s.records, &clone)
	return nil
}

func (s *MemoryStore) FindActive(_ context.Context, email string, typ Type) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var latest *Record
	for _, r := range s.records {
		if r.Email != email || r.Type != typ || r.Verified || !r.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (s *MemoryStore) Update(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == record.ID {
			clone := *record
			s.records[i] = &clone
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) PurgeStale(_ context.Context, email string, typ Type, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.records[:0]
	for _, r := range s.records {
		stale := r.Email == email && r.Type == typ &&
			(r.Verified || !r.ExpiresAt.After(now) || r.Attempts >= maxAttempts)
		if !stale {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}
