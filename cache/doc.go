// Package cache unifies the remote cache transports used by the credential
// core behind a single [Backend] contract.
//
// # Backend selection
//
// [NewClient] probes the REST transport first (preferred for stateless and
// serverless deployments), then the socket transport, and finally — when
// permitted by [Config.AllowMemoryFallback] — an in-process store. The memory
// backend is instance-scoped and NOT consistent across server instances; it
// exists to preserve partial functionality during an outage, not to guarantee
// correctness.
//
// # Failure signaling
//
// Remote errors are wrapped in [ErrUnavailable] and returned to the caller.
// This package never swallows errors or silently succeeds: each higher-level
// service (rate limiting, blacklist, counters) decides its own degradation
// policy per operation.
//
// # What this package must NOT do
//
//   - Expose which concrete backend is active to call sites.
//   - Retry indefinitely; reconnection is a single lazy re-probe per call.
package cache
