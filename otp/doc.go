// Package otp issues and verifies 6-digit one-time codes for email
// verification, password reset, and two-factor challenges.
//
// Codes live in a persistent record store — not the cache — so they survive
// process restarts. At most one valid (unverified, unexpired,
// attempts-below-ceiling) record is authoritative per (email, type): issuing
// a fresh code purges stale records first, and older unexpired records are
// superseded by recency.
//
// The plaintext code is returned exactly once, from [Manager.Create], for
// out-of-band delivery. It never appears in any serialized form of [Record].
//
// Store unavailability is a hard error for the request: code correctness
// must not degrade, so there is no fallback path here.
package otp
