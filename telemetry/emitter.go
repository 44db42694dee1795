package telemetry

import "context"

// Emitter is the sink every resilience component emits events through. A
// nil Emitter is never passed around; callers that want telemetry disabled
// use Noop{} (outbound events are always produced, the sink decides whether
// to do anything with them).
type Emitter interface {
	RequestStart(ctx context.Context, ev RequestStart) context.Context
	RequestStop(ctx context.Context, ev RequestStop)
	RequestException(ctx context.Context, ev RequestException)
	RetryAttempt(ctx context.Context, ev RetryAttempt)
	CircuitStateChange(ctx context.Context, ev CircuitStateChange)
	CircuitOpenReject(ctx context.Context, ev CircuitOpenReject)
	RateLimit(ctx context.Context, ev RateLimitEvent)
	Dedup(ctx context.Context, ev DedupEvent)
}

// Noop discards every event. It is the zero-config Emitter a Client starts
// with before telemetry is wired in.
type Noop struct{}

func (Noop) RequestStart(ctx context.Context, ev RequestStart) context.Context { return ctx }
func (Noop) RequestStop(ctx context.Context, ev RequestStop)                  {}
func (Noop) RequestException(ctx context.Context, ev RequestException)        {}
func (Noop) RetryAttempt(ctx context.Context, ev RetryAttempt)                 {}
func (Noop) CircuitStateChange(ctx context.Context, ev CircuitStateChange)     {}
func (Noop) CircuitOpenReject(ctx context.Context, ev CircuitOpenReject)       {}
func (Noop) RateLimit(ctx context.Context, ev RateLimitEvent)                  {}
func (Noop) Dedup(ctx context.Context, ev DedupEvent)                          {}

var _ Emitter = Noop{}

// Multi fans out every event to each of its members, in order. A member
// that panics is not recovered from here — Emitter implementations must
// themselves be panic-free.
type Multi []Emitter

func (m Multi) RequestStart(ctx context.Context, ev RequestStart) context.Context {
	for _, e := range m {
		ctx = e.RequestStart(ctx, ev)
	}
	return ctx
}

func (m Multi) RequestStop(ctx context.Context, ev RequestStop) {
	for _, e := range m {
		e.RequestStop(ctx, ev)
	}
}

func (m Multi) RequestException(ctx context.Context, ev RequestException) {
	for _, e := range m {
		e.RequestException(ctx, ev)
	}
}

func (m Multi) RetryAttempt(ctx context.Context, ev RetryAttempt) {
	for _, e := range m {
		e.RetryAttempt(ctx, ev)
	}
}

func (m Multi) CircuitStateChange(ctx context.Context, ev CircuitStateChange) {
	for _, e := range m {
		e.CircuitStateChange(ctx, ev)
	}
}

func (m Multi) CircuitOpenReject(ctx context.Context, ev CircuitOpenReject) {
	for _, e := range m {
		e.CircuitOpenReject(ctx, ev)
	}
}

func (m Multi) RateLimit(ctx context.Context, ev RateLimitEvent) {
	for _, e := range m {
		e.RateLimit(ctx, ev)
	}
}

func (m Multi) Dedup(ctx context.Context, ev DedupEvent) {
	for _, e := range m {
		e.Dedup(ctx, ev)
	}
}

var _ Emitter = Multi(nil)
