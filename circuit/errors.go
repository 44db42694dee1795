package circuit

import "errors"

// ErrOpen is returned when the circuit is open (or half-open and out of
// admission slots) and the call is rejected without invoking the caller's
// function.
var ErrOpen = errors.New("circuit: breaker is open")
