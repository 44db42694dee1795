package circuit

import (
	"context"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

// Recognized states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures one circuit-breaker key.
type Config struct {
	FailureThreshold           int
	FailureThresholdPercentage float64
	WindowSize                 int
	Timeout                    time.Duration
	HalfOpenRequests           int
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:           5,
		FailureThresholdPercentage: 50,
		WindowSize:                 10,
		Timeout:                    30 * time.Second,
		HalfOpenRequests:           1,
	}
}

// Mode selects whether a request-level Setting overrides or defers to the
// client-level configuration.
type Mode int

const (
	ModeDefault Mode = iota
	ModeEnabled
	ModeDisabled
)

// Setting is the resolved per-request circuit-breaker option.
type Setting struct {
	Mode   Mode
	Config Config
}

// slidingWindow is a fixed-capacity ring buffer of outcomes with an
// incrementally maintained failure count, so evaluating should-open never
// scans the whole window.
type slidingWindow struct {
	outcomes []bool // true = failure
	filled   []bool // whether this slot has ever been written
	next     int
	count    int // number of filled slots, capped at capacity
	failures int
}

func newSlidingWindow(capacity int) *slidingWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &slidingWindow{
		outcomes: make([]bool, capacity),
		filled:   make([]bool, capacity),
	}
}

func (w *slidingWindow) record(isFailure bool) {
	if w.filled[w.next] {
		if w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.count++
	}
	w.outcomes[w.next] = isFailure
	w.filled[w.next] = true
	if isFailure {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.outcomes)
}

func (w *slidingWindow) full() bool { return w.count >= len(w.outcomes) }

func (w *slidingWindow) reset() {
	for i := range w.outcomes {
		w.outcomes[i] = false
		w.filled[i] = false
	}
	w.next = 0
	w.count = 0
	w.failures = 0
}

// circuitState is the per-key mutable record.
type circuitState struct {
	mu               sync.Mutex
	state            State
	window           *slidingWindow
	openedAt         time.Time
	halfOpenAdmitted int
	halfOpenSuccess  int
}

// Callbacks receives circuit breaker telemetry.
type Callbacks struct {
	OnStateChange func(key string, from, to State)
	OnOpenReject  func(key string)
}

// Breaker is a concurrent keyed circuit breaker store.
type Breaker struct {
	callbacks Callbacks

	mu       sync.RWMutex
	circuits map[string]*circuitState
}

// NewBreaker creates a Breaker.
func NewBreaker(callbacks Callbacks) *Breaker {
	return &Breaker{callbacks: callbacks, circuits: make(map[string]*circuitState)}
}

func (b *Breaker) entryFor(key string, cfg Config) *circuitState {
	b.mu.RLock()
	c, ok := b.circuits[key]
	b.mu.RUnlock()
	if ok {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok = b.circuits[key]; ok {
		return c
	}
	c = &circuitState{state: StateClosed, window: newSlidingWindow(cfg.WindowSize)}
	b.circuits[key] = c
	return c
}

// setState must be called with c.mu held. Callers fire OnStateChange
// themselves after releasing the lock, so user code never runs under it.
func (c *circuitState) setState(to State) (from State, changed bool) {
	from = c.state
	if from == to {
		return from, false
	}
	c.state = to
	if to == StateHalfOpen {
		c.halfOpenAdmitted = 0
		c.halfOpenSuccess = 0
	}
	return from, true
}

// admit evaluates the gate and, for half-open, atomically increments the
// admission counter in the same critical section as the check — this keeps
// half-open admission race-free under concurrent callers.
func (b *Breaker) admit(key string, cfg Config) error {
	c := b.entryFor(key, cfg)

	c.mu.Lock()
	// Promote open -> half-open once the timeout has elapsed, still inside
	// the lock so the promotion and the subsequent admission decision are
	// atomic with respect to other callers. The state-change notification
	// is deferred until admit returns, after the lock has been released.
	if c.state == StateOpen && time.Since(c.openedAt) >= cfg.Timeout {
		from, changed := c.setState(StateHalfOpen)
		if changed {
			defer b.notify(key, from, StateHalfOpen)
		}
	}

	switch c.state {
	case StateOpen:
		c.mu.Unlock()
		if b.callbacks.OnOpenReject != nil {
			b.callbacks.OnOpenReject(key)
		}
		return ErrOpen
	case StateHalfOpen:
		if c.halfOpenAdmitted >= cfg.HalfOpenRequests {
			c.mu.Unlock()
			if b.callbacks.OnOpenReject != nil {
				b.callbacks.OnOpenReject(key)
			}
			return ErrOpen
		}
		c.halfOpenAdmitted++
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return nil
	}
}

func (b *Breaker) notify(key string, from, to State) {
	if b.callbacks.OnStateChange != nil {
		b.callbacks.OnStateChange(key, from, to)
	}
}

// shouldOpen implements the should-open predicate. Must be called
// with c.mu held.
func shouldOpen(c *circuitState, cfg Config) bool {
	if c.window.failures >= cfg.FailureThreshold {
		return true
	}
	if c.window.full() {
		pct := float64(c.window.failures) / float64(len(c.window.outcomes)) * 100
		if pct >= cfg.FailureThresholdPercentage {
			return true
		}
	}
	return false
}

// recordOutcome applies the state transition table for one outcome.
func (b *Breaker) recordOutcome(key string, cfg Config, isFailure bool) {
	c := b.entryFor(key, cfg)

	c.mu.Lock()
	var from, to State
	var changed bool

	switch c.state {
	case StateClosed:
		c.window.record(isFailure)
		if isFailure && shouldOpen(c, cfg) {
			from, changed = c.setState(StateOpen)
			c.openedAt = time.Now()
			to = StateOpen
		}
	case StateHalfOpen:
		if isFailure {
			from, changed = c.setState(StateOpen)
			c.openedAt = time.Now()
			to = StateOpen
			c.window.reset()
		} else {
			c.halfOpenSuccess++
			if c.halfOpenSuccess >= cfg.HalfOpenRequests {
				from, changed = c.setState(StateClosed)
				to = StateClosed
				c.window.reset()
			}
		}
	case StateOpen:
		// A success/failure recorded while still open (e.g. a stale
		// in-flight call finishing late) does not change state.
	}
	c.mu.Unlock()

	if changed {
		b.notify(key, from, to)
	}
}

// RecordSuccess records a successful outcome for key.
func (b *Breaker) RecordSuccess(key string, cfg Config) { b.recordOutcome(key, cfg, false) }

// RecordFailure records a failed outcome for key.
func (b *Breaker) RecordFailure(key string, cfg Config) { b.recordOutcome(key, cfg, true) }

// Admit gates key without recording an outcome. Callers that need to run
// the gated work across other stages (the pipeline's CircuitStage runs the
// rest of the request between admission and recording) use this instead of
// Call; they must follow up with RecordSuccess/RecordFailure themselves.
func (b *Breaker) Admit(key string, cfg Config) error {
	return b.admit(key, cfg)
}

// Call gates fn through the breaker, then records its outcome.
func (b *Breaker) Call(ctx context.Context, key string, cfg Config, isFailure func(error) bool, fn func(context.Context) error) error {
	if err := b.admit(key, cfg); err != nil {
		return err
	}

	err := fn(ctx)

	failed := err != nil
	if isFailure != nil {
		failed = isFailure(err)
	}
	b.recordOutcome(key, cfg, failed)
	return err
}

// State returns the current state for key. The second return value is
// false if no circuit has been created for key yet.
func (b *Breaker) State(key string) (State, bool) {
	b.mu.RLock()
	c, ok := b.circuits[key]
	b.mu.RUnlock()
	if !ok {
		return StateClosed, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, true
}

// Open forces key into the open state.
func (b *Breaker) Open(key string, cfg Config) {
	c := b.entryFor(key, cfg)
	c.mu.Lock()
	from, changed := c.setState(StateOpen)
	c.openedAt = time.Now()
	c.mu.Unlock()
	if changed {
		b.notify(key, from, StateOpen)
	}
}

// Reset restores key to closed with an empty window.
func (b *Breaker) Reset(key string, cfg Config) {
	c := b.entryFor(key, cfg)
	c.mu.Lock()
	from, changed := c.setState(StateClosed)
	c.window.reset()
	c.mu.Unlock()
	if changed {
		b.notify(key, from, StateClosed)
	}
}
