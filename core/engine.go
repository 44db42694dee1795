package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/httpguard/adapter"
	"github.com/jonwraymond/httpguard/circuit"
	"github.com/jonwraymond/httpguard/dedup"
	"github.com/jonwraymond/httpguard/pipeline"
	"github.com/jonwraymond/httpguard/ratelimit"
	"github.com/jonwraymond/httpguard/request"
	"github.com/jonwraymond/httpguard/retry"
	"github.com/jonwraymond/httpguard/telemetry"
)

// Engine wires the leaf packages into the data-and-control flow: dedup
// (first, so hits never touch rate limit or circuit) →
// rate limiter (second) → circuit breaker (last, guards the adapter) →
// retry-wrapped adapter call. It is the one place import cycles are
// resolved: the leaf packages stay decoupled from each other and from
// request/circuit by taking narrow func types (ratelimit.CircuitStateFunc,
// retry.Classifier), which Engine closes over the real types here.
type Engine struct {
	Adapter adapter.Adapter
	Limiter *ratelimit.Limiter
	Breaker *circuit.Breaker
	Dedup   *dedup.Deduplicator
	Emitter telemetry.Emitter
}

// New builds an Engine with fresh keyed stores and the given adapter. A nil
// emitter is replaced with telemetry.Noop{} so every code path can assume a
// non-nil sink.
func New(ad adapter.Adapter, emitter telemetry.Emitter) *Engine {
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	e := &Engine{
		Adapter: ad,
		Limiter: ratelimit.NewLimiter(5 * time.Minute),
		Dedup:   dedup.New(500 * time.Millisecond),
		Emitter: emitter,
	}
	e.Breaker = circuit.NewBreaker(circuit.Callbacks{
		OnStateChange: e.onCircuitStateChange,
		OnOpenReject:  e.onCircuitOpenReject,
	})
	return e
}

// Close stops the engine's background janitors (rate-limiter bucket GC,
// dedup completed-entry GC). Best-effort; safe to skip during shutdown.
func (e *Engine) Close() {
	if e.Limiter != nil {
		e.Limiter.Close()
	}
	if e.Dedup != nil {
		e.Dedup.Close()
	}
}

func (e *Engine) onCircuitStateChange(key string, from, to circuit.State) {
	e.Emitter.CircuitStateChange(context.Background(), telemetry.CircuitStateChange{
		Key: key, From: from.String(), To: to.String(),
	})
}

func (e *Engine) onCircuitOpenReject(key string) {
	e.Emitter.CircuitOpenReject(context.Background(), telemetry.CircuitOpenReject{Key: key})
}

// circuitStateFor adapts circuit.Breaker's State into the narrow
// ratelimit.CircuitStateFunc contract the rate limiter needs for adaptive
// throttling. The breaker is looked up by the request's own
// circuit key, independent of whichever key the rate limiter itself uses.
func (e *Engine) circuitStateFor(circuitKey string) ratelimit.CircuitStateFunc {
	return func(string) (ratelimit.CircuitState, bool) {
		st, ok := e.Breaker.State(circuitKey)
		if !ok {
			return ratelimit.CircuitClosed, false
		}
		switch st {
		case circuit.StateOpen:
			return ratelimit.CircuitOpen, true
		case circuit.StateHalfOpen:
			return ratelimit.CircuitHalfOpen, true
		default:
			return ratelimit.CircuitClosed, true
		}
	}
}

// Do gates and executes one request end to end: test-mode gate, dedup,
// rate limiter, circuit breaker, retry-wrapped adapter call, telemetry
// span.
func (e *Engine) Do(ctx context.Context, r *request.Request) (*request.Response, error) {
	if err := e.checkTestMode(r); err != nil {
		return nil, err
	}

	if r.Opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Opts.Timeout)
		defer cancel()
	}

	ctx = e.Emitter.RequestStart(ctx, telemetry.RequestStart{
		CorrelationID: r.CorrelationID,
		Method:        string(r.Method),
		URLSanitized:  r.SanitizedURL(),
		Headers:       map[string][]string(r.Headers),
		Body:          r.Body,
	})

	start := time.Now()
	retryCount := 0

	stages := e.buildStages(r)
	call := e.adapterCall(r, &retryCount)

	onDedup := func(outcome dedup.Outcome, key string, waitTimeMS int64) {
		e.onDedupEvent(r.CorrelationID, outcome, key, waitTimeMS)
	}

	dedupRun := pipeline.DedupWrap(e.Dedup, r, onDedup, func(ctx context.Context) pipeline.Outcome {
		return pipeline.Run(ctx, r, stages, call)
	})

	outcome := dedupRun(ctx)

	duration := time.Since(start)
	resp, err := outcome.Response, outcome.Err
	e.emitStop(ctx, r.CorrelationID, duration, resp, err, retryCount)
	return resp, err
}

// checkTestMode implements the test_mode gate: when blocked, every
// outbound call fails with network_blocked before reaching any stage.
func (e *Engine) checkTestMode(r *request.Request) error {
	if r.Opts.TestMode == request.TestModeBlocked {
		return &request.Error{Reason: request.ReasonNetworkBlocked}
	}
	return nil
}

// buildStages assembles the fixed-order pipeline for one request: rate
// limiter then circuit breaker. Disabled stages still appear
// in the slice but no-op immediately — Options.*Enabled() is checked
// inside each stage's Handle, not here, since whether a stage is a no-op
// can depend on per-request option overrides that Engine doesn't need to
// know about. Dedup is not a Stage; it wraps the whole pipeline call in Do.
func (e *Engine) buildStages(r *request.Request) []pipeline.Stage {
	correlationID := r.CorrelationID
	return []pipeline.Stage{
		&pipeline.RateLimitStage{
			Limiter:   e.Limiter,
			CircuitOf: e.circuitStateFor(r.CircuitKey()),
			OnEvent: func(name, key string, adj ratelimit.AdaptiveAdjustment) {
				e.onRateLimitEvent(correlationID, name, key, adj)
			},
		},
		&pipeline.CircuitStage{Breaker: e.Breaker},
	}
}

// adapterCall builds the pipeline's terminal call: the retry executor
// wrapping the adapter. Retry is not a pipeline stage, so
// dedup/circuit see exactly one logical outcome regardless of attempt
// count.
func (e *Engine) adapterCall(r *request.Request, retryCount *int) func(ctx context.Context, req *request.Request) (*request.Response, error) {
	return func(ctx context.Context, req *request.Request) (*request.Response, error) {
		cfg := req.Opts.Retry

		resp, status, _, err := retry.Execute(ctx, cfg, string(req.Method), req.URL.String(),
			func(ctx context.Context) (*request.Response, int, http.Header, error) {
				resp, err := e.Adapter.Request(ctx, req.Method, req.URL.String(), req.Body, req.Headers)
				if err != nil {
					return nil, 0, nil, err
				}
				return resp, resp.Status, toHTTPHeader(resp.Headers), nil
			},
			classifier(cfg),
			func(ev retry.Event) {
				*retryCount++
				e.Emitter.RetryAttempt(ctx, telemetry.RetryAttempt{
					CorrelationID: r.CorrelationID,
					AttemptNumber: ev.AttemptNumber, DelayMS: ev.DelayMS,
					Method: ev.Method, URL: ev.URL, Reason: ev.Reason,
				})
			},
		)

		if err != nil {
			return nil, err
		}
		if resp != nil {
			e.syncRateLimitFromResponse(req, resp)
		}
		if retry.RetryableStatuses[status] {
			// Retries (if any) are exhausted — a retryable status that
			// never turned into a success becomes an http_status Error.
			return nil, &request.Error{Reason: request.ReasonHTTPStatus, HTTPStatus: status, Response: resp}
		}
		return resp, nil
	}
}

// syncRateLimitFromResponse decodes recognized rate-limit headers (GitHub,
// IETF, Stripe) off a response and synchronizes the bucket for req's
// rate-limit key, so the limiter's view of remaining capacity tracks what
// the server just reported instead of drifting from the local refill
// estimate alone.
func (e *Engine) syncRateLimitFromResponse(req *request.Request, resp *request.Response) {
	limits := ratelimit.ParseHeaders(toHTTPHeader(resp.Headers), ratelimit.FormatAuto)
	if !limits.Found {
		return
	}
	e.Limiter.SyncFromServer(req.RateLimitKey(), ratelimit.ServerLimits{
		Limit:     limits.Limit,
		Remaining: limits.Remaining,
		ResetAt:   limits.ResetAt,
	})
}

// classifier encodes the per-attempt retry decision: retryable
// HTTP status, or a retryable transport reason (econnreset only when
// RetrySafe).
func classifier(cfg retry.Config) retry.Classifier {
	return func(attempt int, status int, err error) retry.Decision {
		if err != nil {
			var rerr *request.Error
			if errors.As(err, &rerr) {
				if rerr.Reason.IsRetryableTransport() {
					return retry.Decision{Retry: true, Reason: string(rerr.Reason)}
				}
				if rerr.Reason == request.ReasonConnReset && cfg.RetrySafe {
					return retry.Decision{Retry: true, Reason: string(rerr.Reason)}
				}
			}
			return retry.Decision{Retry: false}
		}
		if retry.RetryableStatuses[status] {
			return retry.Decision{Retry: true, Reason: "http_status"}
		}
		return retry.Decision{Retry: false}
	}
}

func toHTTPHeader(h request.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

// onRateLimitEvent bridges pipeline.RateLimitStage's untyped event name
// into a telemetry.RateLimitEvent. "rate_limit.adaptive_reduction" fires as
// its own event in addition to the stage's own outcome event: adaptive
// reduction is a distinct discrete event alongside ok/wait/exceeded rather
// than a field on them.
func (e *Engine) onRateLimitEvent(correlationID, name, key string, adj ratelimit.AdaptiveAdjustment) {
	if name == "rate_limit.adaptive_reduction" {
		e.Emitter.RateLimit(context.Background(), telemetry.RateLimitEvent{
			CorrelationID: correlationID,
			Outcome:       telemetry.RateLimitAdaptiveReduction, Key: key,
			OriginalRate: adj.OriginalRate, AdjustedRate: adj.AdjustedRate,
			ReductionFactor: adj.ReductionFactor, CircuitState: circuitStateName(adj.CircuitState),
		})
		return
	}

	ev := telemetry.RateLimitEvent{CorrelationID: correlationID, Key: key}
	switch name {
	case "rate_limit.ok":
		ev.Outcome = telemetry.RateLimitOK
	case "rate_limit.wait_timeout":
		ev.Outcome = telemetry.RateLimitWaitTimeout
	case "rate_limit.exceeded":
		ev.Outcome = telemetry.RateLimitExceeded
	default:
		return
	}
	e.Emitter.RateLimit(context.Background(), ev)
}

func circuitStateName(s ratelimit.CircuitState) string {
	switch s {
	case ratelimit.CircuitOpen:
		return "open"
	case ratelimit.CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func (e *Engine) onDedupEvent(correlationID string, outcome dedup.Outcome, key string, waitTimeMS int64) {
	ev := telemetry.DedupEvent{CorrelationID: correlationID, Key: key, WaitTimeMS: waitTimeMS}
	switch outcome {
	case dedup.OutcomeExecute:
		ev.Outcome = telemetry.DedupExecute
	case dedup.OutcomeWait:
		ev.Outcome = telemetry.DedupWait
		ev.BypassedRateLimit = true
	case dedup.OutcomeCached:
		ev.Outcome = telemetry.DedupCacheHit
		ev.BypassedRateLimit = true
	default:
		return
	}
	e.Emitter.Dedup(context.Background(), ev)
}

func (e *Engine) emitStop(ctx context.Context, correlationID string, duration time.Duration, resp *request.Response, err error, retryCount int) {
	if err != nil {
		var rerr *request.Error
		errType := "error"
		if errors.As(err, &rerr) {
			errType = string(rerr.Reason)
		}
		e.Emitter.RequestException(ctx, telemetry.RequestException{
			CorrelationID: correlationID, Duration: duration, Kind: "error", Reason: errType,
		})
		e.Emitter.RequestStop(ctx, telemetry.RequestStop{
			CorrelationID: correlationID, Duration: duration, ErrorType: errType, RetryCount: retryCount,
		})
		return
	}
	var headers map[string][]string
	var body []byte
	status := 0
	if resp != nil {
		headers = map[string][]string(resp.Headers)
		body = resp.Body
		status = resp.Status
	}
	e.Emitter.RequestStop(ctx, telemetry.RequestStop{
		CorrelationID: correlationID, Duration: duration, Status: status, Headers: headers, Body: body, RetryCount: retryCount,
	})
}
