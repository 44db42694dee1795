package pipeline

import (
	"context"

	"github.com/jonwraymond/httpguard/request"
)

// Verdict is what a Stage returns for one request.
type Verdict int

const (
	// VerdictContinue advances to the next stage unchanged.
	VerdictContinue Verdict = iota
	// VerdictContinueWith advances to the next stage with a modified Request.
	VerdictContinueWith
	// VerdictHalt skips every remaining stage and the adapter/retry call,
	// but post-stage hooks still run.
	VerdictHalt
	// VerdictFail short-circuits the whole pipeline with an error.
	VerdictFail
)

// Result is a Stage's decision for one request.
type Result struct {
	Verdict  Verdict
	Request  *request.Request // set when Verdict == VerdictContinueWith
	Response *request.Response // set when Verdict == VerdictHalt
	Err      error            // set when Verdict == VerdictFail
}

// Continue advances to the next stage unchanged.
func Continue() Result { return Result{Verdict: VerdictContinue} }

// ContinueWith advances to the next stage with a modified Request.
func ContinueWith(r *request.Request) Result {
	return Result{Verdict: VerdictContinueWith, Request: r}
}

// Halt skips every remaining stage and the adapter call.
func Halt(resp *request.Response) Result {
	return Result{Verdict: VerdictHalt, Response: resp}
}

// Fail short-circuits the pipeline with an error.
func Fail(err error) Result {
	return Result{Verdict: VerdictFail, Err: err}
}

// Stage is one middleware stage. Implementations must not panic; any
// unexpected exception is recovered by Run and converted to a
// middleware_error Fail.
type Stage interface {
	Name() string
	Handle(ctx context.Context, r *request.Request) Result
}

// PostHook runs unconditionally after the adapter call completes or is
// skipped by Halt. success is false for both adapter errors and
// a Fail raised by a later stage/the adapter call itself.
type PostHook func(success bool)

// postHookKey is the request.Private slot stages use to register PostHooks.
// Stages append to the slice already present, if any.
const postHookKey request.Key = "pipeline.post_hooks"

// RegisterPostHook appends hook to r's post-hook list. Private is shared by
// reference across With* copies, so a hook registered by an earlier stage
// still runs even if later stages return new Request copies.
func RegisterPostHook(r *request.Request, hook PostHook) {
	existing, _ := r.Get(postHookKey)
	hooks, _ := existing.([]PostHook)
	hooks = append(hooks, hook)
	r.Set(postHookKey, hooks)
}

func runPostHooks(r *request.Request, success bool) {
	v, ok := r.Get(postHookKey)
	if !ok {
		return
	}
	hooks, _ := v.([]PostHook)
	for _, hook := range hooks {
		hook(success)
	}
}

// Outcome is the terminal result of Run.
type Outcome struct {
	// Halted is true when a stage returned Halt before the adapter call
	// ran, or when DedupWrap served a cached response. An open circuit is
	// reported as a Fail (Err set), not as Halted.
	Halted   bool
	Response *request.Response
	Err      error
}

// Run folds stages left-to-right over r, invoking call (the adapter, or the
// retry-wrapped adapter) when every stage continues, then runs every
// registered post-hook with the final success/failure verdict.
func Run(ctx context.Context, r *request.Request, stages []Stage, call func(ctx context.Context, r *request.Request) (*request.Response, error)) Outcome {
	current := r

	for _, stage := range stages {
		result := invoke(stage, ctx, current)

		switch result.Verdict {
		case VerdictContinue:
			// no-op, current unchanged
		case VerdictContinueWith:
			current = result.Request
		case VerdictHalt:
			runPostHooks(current, true)
			return Outcome{Halted: true, Response: result.Response}
		case VerdictFail:
			runPostHooks(current, false)
			return Outcome{Err: result.Err}
		}
	}

	resp, err := call(ctx, current)
	runPostHooks(current, err == nil)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Response: resp}
}

func invoke(stage Stage, ctx context.Context, r *request.Request) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Fail(request.NewMiddlewareError(stage.Name(), panicError{rec}))
		}
	}()
	return stage.Handle(ctx, r)
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if err, ok := p.v.(error); ok {
		return err.Error()
	}
	return "panic in pipeline stage"
}
