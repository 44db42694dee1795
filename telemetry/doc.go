// Package telemetry defines the event contracts every other package emits
// through (request.start/stop/exception spans, retry.attempt, the
// circuit-breaker and rate-limiter discrete events, and the dedup
// coordination events) and two concrete sinks: a redacting structured JSON
// logger, and an OTel span/metric sink. Both implement Emitter so the core
// can be built against the interface and wired to either, or both via
// Multi.
package telemetry
