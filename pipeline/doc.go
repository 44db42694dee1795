// Package pipeline runs the ordered middleware stages (rate limiter, then
// circuit breaker) around an adapter call; dedup is not a stage but wraps
// the whole run (see DedupWrap). Each stage returns one of
// Continue, ContinueWith, Halt or Fail; the executor folds stages
// left-to-right as an explicit result type instead of nested closures,
// since a stage here can short-circuit with a cached response rather than
// only succeed or error.
package pipeline
