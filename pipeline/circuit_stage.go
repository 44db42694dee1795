package pipeline

import (
	"context"
	"errors"

	"github.com/jonwraymond/httpguard/circuit"
	"github.com/jonwraymond/httpguard/request"
)

// CircuitStage gates requests against a per-key three-state breaker and
// registers a post-hook that records the adapter outcome back to it.
type CircuitStage struct {
	Breaker *circuit.Breaker
}

func (s *CircuitStage) Name() string { return "circuit_breaker" }

func (s *CircuitStage) Handle(ctx context.Context, r *request.Request) Result {
	if s.Breaker == nil || !r.Opts.CircuitEnabled() {
		return Continue()
	}

	key := r.CircuitKey()
	cfg := r.Opts.Circuit.Config

	if err := s.Breaker.Admit(key, cfg); err != nil {
		if errors.Is(err, circuit.ErrOpen) {
			return Fail(&request.Error{Reason: request.ReasonServiceUnavailable})
		}
		return Fail(err)
	}

	RegisterPostHook(r, func(success bool) {
		if success {
			s.Breaker.RecordSuccess(key, cfg)
		} else {
			s.Breaker.RecordFailure(key, cfg)
		}
	})
	return Continue()
}
