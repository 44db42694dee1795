// Package ratelimit implements a per-key token bucket rate limiter with
// lazy bucket creation, server-header synchronization, and adaptive
// throttling coordinated with a circuit breaker's observed state.
//
// # Algorithm
//
// Each key owns a Bucket{tokens, last_refill}. On every Check/Consume the
// limiter refills tokens = min(max_tokens, tokens + elapsed*refill_rate)
// before evaluating the request. Adaptive scaling is computed per call from
// the circuit state and is not stored in the bucket; server-header
// synchronization is a separate operation (SyncFromServer).
//
// # Thread Safety
//
// Limiter is safe for concurrent use. Per-key critical sections are short:
// each bucket owns its own mutex, so operations on different keys never
// contend, and no lock is ever held across keys or across an adapter call.
package ratelimit
