package dedup

import "errors"

// ErrTimeout is returned when Run gives up waiting for an in-flight
// duplicate's result before WaitTimeout elapses.
var ErrTimeout = errors.New("dedup: timed out waiting for in-flight request")
