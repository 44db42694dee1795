package circuit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreaker_OpensOnThreshold(t *testing.T) {
	b := NewBreaker(Callbacks{})
	cfg := Config{FailureThreshold: 3, WindowSize: 10, Timeout: time.Minute, HalfOpenRequests: 1}

	for i := 0; i < 3; i++ {
		err := b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return errBoom })
		if !errors.Is(err, errBoom) {
			t.Fatalf("call %d err = %v, want errBoom", i, err)
		}
	}

	called := false
	err := b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("4th call err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("adapter function invoked while circuit open")
	}
	if state, _ := b.State("X"); state != StateOpen {
		t.Errorf("state = %v, want open", state)
	}
}

func TestBreaker_Recovery(t *testing.T) {
	b := NewBreaker(Callbacks{})
	cfg := Config{FailureThreshold: 3, WindowSize: 10, Timeout: 100 * time.Millisecond, HalfOpenRequests: 1}

	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return errBoom })
	}
	if state, _ := b.State("X"); state != StateOpen {
		t.Fatalf("state after failures = %v, want open", state)
	}

	time.Sleep(150 * time.Millisecond)

	err := b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("recovery call err = %v, want nil", err)
	}
	if state, _ := b.State("X"); state != StateClosed {
		t.Errorf("state after recovery = %v, want closed", state)
	}
}

func TestBreaker_HalfOpenRaceSafety(t *testing.T) {
	b := NewBreaker(Callbacks{})
	cfg := Config{FailureThreshold: 1, WindowSize: 10, Timeout: 10 * time.Millisecond, HalfOpenRequests: 3}

	_ = b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	const n = 50
	var admitted int64
	var rejected int64
	var wg sync.WaitGroup
	wg.Add(n)
	block := make(chan struct{})

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := b.Call(context.Background(), "X", cfg, nil, func(context.Context) error {
				<-block
				return nil
			})
			if errors.Is(err, ErrOpen) {
				atomic.AddInt64(&rejected, 1)
			} else {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(block)
	wg.Wait()

	if admitted != int64(cfg.HalfOpenRequests) {
		t.Errorf("admitted = %d, want exactly %d", admitted, cfg.HalfOpenRequests)
	}
	if admitted+rejected != n {
		t.Errorf("admitted+rejected = %d, want %d", admitted+rejected, n)
	}
}

func TestBreaker_PercentageThresholdOnlyOnceWindowFull(t *testing.T) {
	b := NewBreaker(Callbacks{})
	cfg := Config{FailureThreshold: 1000, FailureThresholdPercentage: 50, WindowSize: 4, Timeout: time.Minute, HalfOpenRequests: 1}

	// 1 failure out of 1 result (100%) but window isn't full yet: must not open.
	_ = b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return errBoom })
	if state, _ := b.State("X"); state != StateClosed {
		t.Fatalf("state with partial window = %v, want closed (percentage not evaluated yet)", state)
	}

	// Fill the window with 3 more failures (4/4 = 100% >= 50%): must open.
	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return errBoom })
	}
	if state, _ := b.State("X"); state != StateOpen {
		t.Errorf("state with full window at 100%% failures = %v, want open", state)
	}
}

func TestBreaker_StateChangeNotifications(t *testing.T) {
	var transitions [][2]State
	var mu sync.Mutex
	b := NewBreaker(Callbacks{OnStateChange: func(key string, from, to State) {
		mu.Lock()
		transitions = append(transitions, [2]State{from, to})
		mu.Unlock()
	}})
	cfg := Config{FailureThreshold: 1, WindowSize: 10, Timeout: 10 * time.Millisecond, HalfOpenRequests: 1}

	_ = b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return errBoom })
	time.Sleep(20 * time.Millisecond)
	_ = b.Call(context.Background(), "X", cfg, nil, func(context.Context) error { return nil })

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 3 {
		t.Fatalf("transitions = %v, want 3 (closed->open, open->half-open, half-open->closed)", transitions)
	}
	want := [][2]State{{StateClosed, StateOpen}, {StateOpen, StateHalfOpen}, {StateHalfOpen, StateClosed}}
	for i, w := range want {
		if transitions[i] != w {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], w)
		}
	}
}
