package retry

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jonwraymond/httpguard/ratelimit"
)

// RetryableStatuses are the HTTP statuses the executor treats as
// retryable when attempts remain.
var RetryableStatuses = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
}

// RetryAfterStatuses are the statuses for which a parseable Retry-After
// header takes precedence over the computed backoff.
var RetryAfterStatuses = map[int]bool{429: true, 503: true}

// Config configures the retry executor.
type Config struct {
	MaxRetries   int
	RetrySafe    bool
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetrySafe:    false,
		BaseDelay:    1000 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.2,
	}
}

// Decision is what a Classifier returns for one completed attempt.
type Decision struct {
	Retry  bool
	Reason string
}

// Classifier decides whether attempt should be retried. status is 0 when
// err is a transport error (no HTTP response was received). It is the
// caller's job to encode the transport-error retry rules
// (timeout/closed/econnrefused always, econnreset only when RetrySafe) —
// retry stays decoupled from any particular error taxonomy so it can be
// reused against any adapter contract.
type Classifier func(attempt int, status int, err error) Decision

// Event is emitted before each retry sleep, as a retry.attempt event.
type Event struct {
	AttemptNumber int
	DelayMS       int64
	Reason        string
	Method        string
	URL           string
}

// Attempt is one call to the wrapped adapter.
type Attempt[T any] func(ctx context.Context) (T, int, http.Header, error)

// Execute calls attempt repeatedly, retrying per classify's decisions with
// exponential backoff, jitter, and Retry-After honoring, until it
// succeeds, is told not to retry, or exhausts cfg.MaxRetries. It is called
// exactly once per logical request — retries happen entirely inside this
// call, so pipeline stages wrapped around it see one outcome regardless of
// attempt count.
func Execute[T any](ctx context.Context, cfg Config, method, url string, attempt Attempt[T], classify Classifier, onRetry func(Event)) (T, int, http.Header, error) {
	var zero T

	for n := 1; ; n++ {
		out, status, headers, err := attempt(ctx)

		decision := classify(n, status, err)
		if !decision.Retry {
			return out, status, headers, err
		}
		if n > cfg.MaxRetries {
			return out, status, headers, err
		}

		delay := computeDelay(cfg, n, status, headers)

		if onRetry != nil {
			onRetry(Event{AttemptNumber: n, DelayMS: delay.Milliseconds(), Reason: decision.Reason, Method: method, URL: url})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, 0, nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func computeDelay(cfg Config, attempt, status int, headers http.Header) time.Duration {
	if headers != nil && RetryAfterStatuses[status] {
		if d, ok := ratelimit.ParseRetryAfter(headers.Get("Retry-After"), time.Now()); ok {
			return d
		}
	}
	return backoff(cfg, attempt)
}

func backoff(cfg Config, attempt int) time.Duration {
	base := cfg.BaseDelay
	if base <= 0 {
		base = DefaultConfig().BaseDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultConfig().MaxDelay
	}

	multiplier := 1 << uint(attempt-1) // 2^(attempt-1)
	delay := base * time.Duration(multiplier)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	jitter := cfg.JitterFactor
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		scale := 1 - jitter*rand.Float64()
		delay = time.Duration(float64(delay) * scale)
	}
	return delay
}
