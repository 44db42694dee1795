// Package retry wraps an adapter call with exponential backoff, jitter,
// and Retry-After honoring. It is deliberately NOT a pipeline
// stage — it wraps the adapter call itself — so dedup, the rate limiter,
// and the circuit breaker each attribute exactly one outcome per logical
// request regardless of how many attempts the retry executor makes
// underneath. Retryability is HTTP-status driven, with Retry-After taking
// precedence over the computed backoff.
package retry
