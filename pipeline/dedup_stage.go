package pipeline

import (
	"context"
	"time"

	"github.com/jonwraymond/httpguard/dedup"
	"github.com/jonwraymond/httpguard/request"
)

// DedupWrap merges concurrent duplicate requests onto one execution of run.
// Unlike RateLimitStage/CircuitStage, dedup cannot be
// a Stage: a cache hit or a merged wait must skip the rate limiter and
// circuit breaker entirely, not just the adapter call, so dedup owns the
// whole downstream call instead of gating-then-continuing. The engine
// wraps pipeline.Run in this before invoking it, rather than including a
// DedupStage in the stage slice.
func DedupWrap(d *dedup.Deduplicator, r *request.Request, onEvent func(outcome dedup.Outcome, key string, waitTimeMS int64), run func(ctx context.Context) Outcome) func(ctx context.Context) Outcome {
	if d == nil || !r.Opts.DedupEnabled() {
		return run
	}

	return func(ctx context.Context) Outcome {
		key := r.Opts.DedupKey
		if key == "" {
			key = dedup.Fingerprint(string(r.Method), r.URL.String(), r.Body)
		}

		waitTimeout := r.Opts.Dedup.Config.WaitTimeout
		start := time.Now()

		v, outcome, err := d.Run(ctx, key, waitTimeout, func(ctx context.Context) (any, error) {
			out := run(ctx)
			if out.Err != nil {
				return nil, out.Err
			}
			return out, nil
		})

		if onEvent != nil {
			onEvent(outcome, key, time.Since(start).Milliseconds())
		}

		switch outcome {
		case dedup.OutcomeTimeout:
			return Outcome{Err: &request.Error{Reason: request.ReasonDedupTimeout, Err: err}}
		case dedup.OutcomeCached, dedup.OutcomeWait:
			if err != nil {
				return Outcome{Err: err}
			}
			cached, _ := v.(Outcome)
			cached.Halted = outcome == dedup.OutcomeCached
			return cached
		default: // OutcomeExecute
			if err != nil {
				return Outcome{Err: err}
			}
			cached, _ := v.(Outcome)
			return cached
		}
	}
}
