// Package circuit implements a per-key three-state circuit breaker with
// sliding-window failure accounting, kept as a keyed store so a client
// with many destinations gets independent breakers per host.
//
// # States
//
//	closed --threshold exceeded--> open
//	open --timeout elapsed, next request--> half_open
//	half_open --any failure--> open
//	half_open --HalfOpenRequests successes--> closed
//
// Half-open admission is race-free: the admitted counter is incremented
// inside the same critical section that checks it against
// HalfOpenRequests, so under N concurrent callers against a half-open
// circuit configured for K admissions, exactly K succeed past the gate.
package circuit
