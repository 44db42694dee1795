package ratelimit

import "errors"

// Sentinel errors for rate-limit operations.
var (
	// ErrTooMany names the ConsumeTooMany outcome (the "error" strategy found
	// no token available). Consume reports a ConsumeOutcome value and does
	// not return this error itself.
	ErrTooMany = errors.New("ratelimit: too many requests")

	// ErrWaitTimeout names the ConsumeWaitTimeout outcome (the "wait"
	// strategy could not obtain a token within MaxWaitTime). Consume reports
	// a ConsumeOutcome value and does not return this error itself.
	ErrWaitTimeout = errors.New("ratelimit: wait exceeded max_wait_time")
)
