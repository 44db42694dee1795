package pipeline

import (
	"context"

	"github.com/jonwraymond/httpguard/ratelimit"
	"github.com/jonwraymond/httpguard/request"
)

// RateLimitStage gates requests against a token bucket, consulting the
// circuit breaker's state for adaptive throttling.
type RateLimitStage struct {
	Limiter   *ratelimit.Limiter
	CircuitOf ratelimit.CircuitStateFunc
	OnEvent   func(name string, key string, adj ratelimit.AdaptiveAdjustment)
}

func (s *RateLimitStage) Name() string { return "rate_limiter" }

func (s *RateLimitStage) Handle(ctx context.Context, r *request.Request) Result {
	if s.Limiter == nil || !r.Opts.RateLimitEnabled() {
		return Continue()
	}

	key := r.RateLimitKey()
	cfg := r.Opts.RateLimit.Config

	outcome, adj := s.Limiter.Consume(ctx, key, cfg, s.CircuitOf)

	if adj.Applied && s.OnEvent != nil {
		s.OnEvent("rate_limit.adaptive_reduction", key, adj)
	}

	switch outcome {
	case ratelimit.ConsumeOK, ratelimit.ConsumeDisabled:
		if s.OnEvent != nil {
			s.OnEvent("rate_limit.ok", key, adj)
		}
		return Continue()
	case ratelimit.ConsumeWaitTimeout:
		if s.OnEvent != nil {
			s.OnEvent("rate_limit.wait_timeout", key, adj)
		}
		return Fail(&request.Error{Reason: request.ReasonRateLimitWaitTimeout})
	default: // ConsumeTooMany
		if s.OnEvent != nil {
			s.OnEvent("rate_limit.exceeded", key, adj)
		}
		return Fail(&request.Error{Reason: request.ReasonTooManyRequests})
	}
}
