package request

import (
	"time"

	"github.com/jonwraymond/httpguard/circuit"
	"github.com/jonwraymond/httpguard/dedup"
	"github.com/jonwraymond/httpguard/ratelimit"
	"github.com/jonwraymond/httpguard/retry"
)

// TestMode gates network access for a request. It exists so
// test suites can construct a real Client and have every request refused
// before it reaches an adapter, rather than relying on a mock transport
// the caller forgets to wire in.
type TestMode int

const (
	// TestModeDefault defers to the client-level setting.
	TestModeDefault TestMode = iota
	// TestModeLive allows the request to reach the adapter.
	TestModeLive
	// TestModeBlocked fails the request with ReasonNetworkBlocked before
	// it reaches the adapter.
	TestModeBlocked
)

// Options is the fully-resolved, per-request configuration surface.
// A client builds the default Options once from its profile and
// ResolveOptions merges a per-call override on top of it. A Setting may
// still carry ModeDefault after merging; pipeline stages resolve it through
// RateLimitEnabled/CircuitEnabled/DedupEnabled.
type Options struct {
	RateLimitKey      string
	CircuitBreakerKey string
	DedupKey          string

	RateLimit ratelimit.Setting
	Circuit   circuit.Setting
	Dedup     dedup.Setting
	Retry     retry.Config

	Timeout time.Duration

	TestMode TestMode
}

// DefaultOptions returns the baseline Options a Client starts from before
// any profile or per-call override is applied.
func DefaultOptions() Options {
	return Options{
		RateLimit: ratelimit.Setting{Mode: ratelimit.ModeDefault, Config: ratelimit.DefaultConfig()},
		Circuit:   circuit.Setting{Mode: circuit.ModeDefault, Config: circuit.DefaultConfig()},
		Dedup:     dedup.Setting{Mode: dedup.ModeDefault, Config: dedup.DefaultConfig()},
		Retry:     retry.DefaultConfig(),
		Timeout:   30 * time.Second,
		TestMode:  TestModeDefault,
	}
}

// Merge returns a copy of base with every non-zero field of override applied
// on top of it. Mode fields (ModeDefault) are the merge signal for the
// *Setting fields: ModeDefault means "keep base", ModeEnabled/ModeDisabled
// means "override wins".
func (base Options) Merge(override Options) Options {
	out := base

	if override.RateLimitKey != "" {
		out.RateLimitKey = override.RateLimitKey
	}
	if override.CircuitBreakerKey != "" {
		out.CircuitBreakerKey = override.CircuitBreakerKey
	}
	if override.DedupKey != "" {
		out.DedupKey = override.DedupKey
	}

	if override.RateLimit.Mode != ratelimit.ModeDefault {
		out.RateLimit = override.RateLimit
	}
	if override.Circuit.Mode != circuit.ModeDefault {
		out.Circuit = override.Circuit
	}
	if override.Dedup.Mode != dedup.ModeDefault {
		out.Dedup = override.Dedup
	}

	if override.Retry != (retry.Config{}) {
		out.Retry = override.Retry
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.TestMode != TestModeDefault {
		out.TestMode = override.TestMode
	}

	return out
}

// RateLimitEnabled reports whether the rate limiter stage should run.
func (o Options) RateLimitEnabled() bool {
	switch o.RateLimit.Mode {
	case ratelimit.ModeDisabled:
		return false
	case ratelimit.ModeEnabled:
		return true
	default:
		return o.RateLimit.Config.Enabled
	}
}

// CircuitEnabled reports whether the circuit breaker stage should run.
func (o Options) CircuitEnabled() bool {
	return o.Circuit.Mode != circuit.ModeDisabled
}

// DedupEnabled reports whether the dedup stage should run.
func (o Options) DedupEnabled() bool {
	switch o.Dedup.Mode {
	case dedup.ModeDisabled:
		return false
	case dedup.ModeEnabled:
		return true
	default:
		return o.Dedup.Config.Enabled
	}
}
