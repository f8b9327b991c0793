package otp

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "alice@example.com"

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	store := NewMemoryStore()
	store.now = func() time.Time { return *clock }

	m := NewManager(store, DefaultMaxAttempts, nil)
	m.now = func() time.Time { return *clock }

	return m, store, clock
}

// wrongCode returns a 6-digit code guaranteed to differ from code.
func wrongCode(code string) string {
	d := (int(code[0]-'0') + 1) % 10
	return fmt.Sprintf("%d%s", d, code[1:])
}

func TestCreateAndVerify(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		require.True(t, c >= '0' && c <= '9', "code %q is not numeric", code)
	}

	result, err := m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, -1, result.AttemptsRemaining)
}

func TestVerifiedCodeIsSingleUse(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	result, err := m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	require.True(t, result.Success)

	// The same code must not verify twice.
	result, err = m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no valid code")
}

func TestVerifyWrongCode(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	result, err := m.Verify(ctx, testEmail, wrongCode(code), TypeEmailVerification)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 4, result.AttemptsRemaining)
	assert.Contains(t, result.Message, "invalid code")

	// A failed attempt does not consume the code.
	result, err = m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestAttemptCeilingForceExpires(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)
	bad := wrongCode(code)

	for i := 1; i <= DefaultMaxAttempts; i++ {
		result, err := m.Verify(ctx, testEmail, bad, TypeEmailVerification)
		require.NoError(t, err)
		require.False(t, result.Success)
		assert.Equal(t, DefaultMaxAttempts-i, result.AttemptsRemaining)
	}

	// The final failure force-expired the record; even the correct code is
	// now rejected as if no code existed.
	result, err := m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no valid code")
	assert.Equal(t, -1, result.AttemptsRemaining)
}

func TestVerifyExpiredCode(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	code, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	*clock = clock.Add(11 * time.Minute)

	result, err := m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no valid code")
}

func TestVerifyNoCode(t *testing.T) {
	m, _, _ := newTestManager(t)

	result, err := m.Verify(context.Background(), testEmail, "123456", TypeEmailVerification)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no valid code")
}

func TestNewestCodeWins(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)
	second, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	result, err := m.Verify(ctx, testEmail, second, TypeEmailVerification)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestTypesDoNotInteract(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	verification, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)
	reset, err := m.Create(ctx, testEmail, TypePasswordReset, 15*time.Minute, Metadata{})
	require.NoError(t, err)

	// A reset code is useless for verification.
	if reset != verification {
		result, err := m.Verify(ctx, testEmail, reset, TypeEmailVerification)
		require.NoError(t, err)
		assert.False(t, result.Success)
	}

	result, err := m.Verify(ctx, testEmail, verification, TypeEmailVerification)
	require.NoError(t, err)
	assert.True(t, result.Success)

	result, err = m.Verify(ctx, testEmail, reset, TypePasswordReset)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestCreatePurgesStaleRecords(t *testing.T) {
	m, store, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	*clock = clock.Add(time.Hour) // first code is long expired

	_, err = m.Create(ctx, testEmail, TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	store.mu.Lock()
	count := 0
	for _, r := range store.records {
		if r.Email == testEmail && r.Type == TypeEmailVerification {
			count++
		}
	}
	store.mu.Unlock()
	assert.Equal(t, 1, count, "expired record not purged on create")
}

func TestVerifyNormalizesEmail(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.Create(ctx, "  Alice@Example.COM ", TypeEmailVerification, 10*time.Minute, Metadata{})
	require.NoError(t, err)

	result, err := m.Verify(ctx, testEmail, code, TypeEmailVerification)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestMetadataStored(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, testEmail, TypeTwoFactor, 10*time.Minute, Metadata{
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)

	record, err := store.FindActive(ctx, testEmail, TypeTwoFactor)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", record.IPAddress)
	assert.Equal(t, "test-agent", record.UserAgent)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	store := NewMemoryStore()
	err := store.Update(context.Background(), &Record{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}
