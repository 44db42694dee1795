// Package dedup fingerprints in-flight requests and promotes duplicates to
// waiters on a shared response, so a burst of identical requests reaches
// the adapter exactly once.
//
// In-flight coordination is built on golang.org/x/sync/singleflight,
// layered with an explicit Completed cache so a request that arrives just
// after the original finishes still gets the cached response instead of
// re-executing (singleflight alone forgets a call's result the instant Do
// returns).
package dedup
