package authcore

import "time"

// LockoutPolicy is pure logic over a credential record's security metadata.
// Callers invoke it around authentication and OTP verification and persist
// the mutated record themselves; the policy performs no I/O.
//
// Per credential the login dimension moves through:
//
//	Unlocked --(fail, count<threshold)--> Unlocked(count+1)
//	         --(fail, count=threshold)--> Locked(until=now+duration)
//	         --(time>=until)-----------> Unlocked (count reset on next success)
//
// Locks always expire by wall clock; there is no permanent ban at this layer.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// NewLockoutPolicy applies the documented defaults (5 failures, 30 minutes)
// for non-positive inputs.
func NewLockoutPolicy(threshold int, duration time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = 5
	}
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	return LockoutPolicy{Threshold: threshold, Duration: duration}
}

// IsLocked evaluates the lock freshly against now. The timestamp comparison
// must never be replaced by a cached boolean, or locks would outlive their
// window (or never expire under clock skew).
func (p LockoutPolicy) IsLocked(meta SecurityMetadata, now time.Time) bool {
	return meta.LockedUntil != nil && meta.LockedUntil.After(now)
}

// RecordLoginFailure increments the login failure counter and, at the
// threshold, sets the lock window. It reports whether the record is now
// locked.
func (p LockoutPolicy) RecordLoginFailure(meta *SecurityMetadata, now time.Time) bool {
	meta.LoginAttempts++
	if meta.LoginAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		meta.LockedUntil = &until
		return true
	}
	return false
}

// RecordOTPFailure is the OTP-dimension counterpart of RecordLoginFailure.
func (p LockoutPolicy) RecordOTPFailure(meta *SecurityMetadata, now time.Time) bool {
	meta.OTPAttempts++
	if meta.OTPAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		meta.LockedUntil = &until
		return true
	}
	return false
}

// RecordLoginSuccess resets the login counter and clears any expired or
// active lock.
func (p LockoutPolicy) RecordLoginSuccess(meta *SecurityMetadata) {
	meta.LoginAttempts = 0
	meta.LockedUntil = nil
}

// RecordOTPSuccess resets the OTP counter and clears any lock.
func (p LockoutPolicy) RecordOTPSuccess(meta *SecurityMetadata) {
	meta.ClearOTPState()
	meta.LockedUntil = nil
}
