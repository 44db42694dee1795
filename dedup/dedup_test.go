package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("POST", "https://api.example.com/v1", []byte(`{"x":1}`))
	b := Fingerprint("POST", "https://api.example.com/v1", []byte(`{"x":1}`))
	if a != b {
		t.Errorf("fingerprint not deterministic: %s != %s", a, b)
	}
}

func TestFingerprint_NilAndEmptyBodyMatch(t *testing.T) {
	a := Fingerprint("GET", "https://api.example.com", nil)
	b := Fingerprint("GET", "https://api.example.com", []byte(""))
	if a != b {
		t.Errorf("nil and empty body fingerprints differ: %s != %s", a, b)
	}
}

func TestFingerprint_DiffersByInput(t *testing.T) {
	a := Fingerprint("GET", "https://a.example.com", nil)
	b := Fingerprint("GET", "https://b.example.com", nil)
	if a == b {
		t.Error("different urls produced the same fingerprint")
	}
}

func TestDeduplicator_SingleExecutor(t *testing.T) {
	d := New(500 * time.Millisecond)
	defer d.Close()

	var executions int32
	block := make(chan struct{})
	fn := func(context.Context) (any, error) {
		atomic.AddInt32(&executions, 1)
		<-block
		return "resp", nil
	}

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	outcomes := make([]Outcome, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, outcome, err := d.Run(context.Background(), "key", 2*time.Second, fn)
			if err != nil {
				t.Errorf("Run %d err = %v", i, err)
			}
			outcomes[i] = outcome
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if got := atomic.LoadInt32(&executions); got != 1 {
		t.Errorf("executions = %d, want exactly 1", got)
	}

	executeCount := 0
	for _, o := range outcomes {
		if o == OutcomeExecute {
			executeCount++
		}
	}
	if executeCount != 1 {
		t.Errorf("OutcomeExecute count = %d, want exactly 1", executeCount)
	}
}

func TestDeduplicator_CacheHitAfterCompletion(t *testing.T) {
	d := New(200 * time.Millisecond)
	defer d.Close()

	fn := func(context.Context) (any, error) { return "resp", nil }

	v, outcome, err := d.Run(context.Background(), "key", time.Second, fn)
	if err != nil || outcome != OutcomeExecute || v != "resp" {
		t.Fatalf("first run = %v, %v, %v", v, outcome, err)
	}

	v2, outcome2, err2 := d.Run(context.Background(), "key", time.Second, func(context.Context) (any, error) {
		t.Fatal("fn should not be invoked on cache hit")
		return nil, nil
	})
	if err2 != nil || outcome2 != OutcomeCached || v2 != "resp" {
		t.Errorf("second run = %v, %v, %v, want cached resp", v2, outcome2, err2)
	}
}

func TestDeduplicator_CacheExpiresAfterTTL(t *testing.T) {
	d := New(30 * time.Millisecond)
	defer d.Close()

	_, _, _ = d.Run(context.Background(), "key", time.Second, func(context.Context) (any, error) { return "resp", nil })

	time.Sleep(100 * time.Millisecond)

	var reexecuted bool
	_, outcome, _ := d.Run(context.Background(), "key", time.Second, func(context.Context) (any, error) {
		reexecuted = true
		return "resp2", nil
	})
	if !reexecuted || outcome != OutcomeExecute {
		t.Errorf("expected re-execution after TTL expiry, got outcome=%v reexecuted=%v", outcome, reexecuted)
	}
}

func TestDeduplicator_ErrorsNotCached(t *testing.T) {
	d := New(500 * time.Millisecond)
	defer d.Close()

	boom := errors.New("boom")
	_, outcome, err := d.Run(context.Background(), "key", time.Second, func(context.Context) (any, error) { return nil, boom })
	if outcome != OutcomeExecute || !errors.Is(err, boom) {
		t.Fatalf("first run = %v, %v", outcome, err)
	}

	var reexecuted bool
	_, _, _ = d.Run(context.Background(), "key", time.Second, func(context.Context) (any, error) {
		reexecuted = true
		return "resp", nil
	})
	if !reexecuted {
		t.Error("a failed execution must not populate the completed cache")
	}
}

func TestDeduplicator_DifferentKeysDoNotInterfere(t *testing.T) {
	d := New(500 * time.Millisecond)
	defer d.Close()

	var calls int32
	fn := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "resp", nil
	}

	_, _, _ = d.Run(context.Background(), "a", time.Second, fn)
	_, _, _ = d.Run(context.Background(), "b", time.Second, fn)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2 for distinct keys", got)
	}
}
