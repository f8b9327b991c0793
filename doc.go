// Package authcore is the credential and session security core: it issues
// and verifies signed token pairs, manages one-time verification codes for
// email verification and password reset, enforces rate limits and account
// lockout, and maintains a jti revocation list — all coordinated through a
// shared distributed cache with a degraded in-process fallback.
//
// The core has no scheduler of its own. [Engine] methods are invoked
// synchronously inside request-handling call stacks, potentially from many
// server instances at once; all cross-instance state (rate-limit counters,
// blacklist entries, one-time codes) lives in the shared cache or the
// persistent record store, never in process memory as the source of truth.
//
// # Architecture boundaries
//
// authcore is the public surface: [Engine], [Builder], [Config], the
// [UserStore] and [Mailer] integration contracts, and value types. HTTP route
// handling, the persistent user database, email delivery, and rendering are
// external collaborators consumed through those narrow interfaces.
//
// # Degradation policy
//
// Subsystems degrade independently when a dependency is unreachable:
//
//   - Rate limiting fails OPEN (requests are allowed; brute-force protection
//     is weakened during the outage and the event is logged and counted).
//   - The blacklist check fails CLOSED during verification; the cache
//     client's in-process fallback preserves degraded availability.
//   - One-time code and credential operations require the persistent store;
//     its unavailability fails the request rather than bypassing a check.
package authcore
