package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func statusClassifier(maxRetries int) Classifier {
	return func(attempt int, status int, err error) Decision {
		if err != nil {
			return Decision{Retry: true, Reason: "transport"}
		}
		if RetryableStatuses[status] {
			return Decision{Retry: true, Reason: "status"}
		}
		return Decision{}
	}
}

func TestExecute_NoRetryOn404(t *testing.T) {
	calls := 0
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		calls++
		return "not found", 404, http.Header{}, nil
	}

	out, status, _, err := Execute(context.Background(), DefaultConfig(), "GET", "http://x", attempt, statusClassifier(3), nil)
	if err != nil || status != 404 || out != "not found" {
		t.Fatalf("Execute = %v, %v, %v, want 404/not found/nil", out, status, err)
	}
	if calls != 1 {
		t.Errorf("adapter invoked %d times, want exactly 1", calls)
	}
}

func TestExecute_RetriesRetryableStatus(t *testing.T) {
	calls := 0
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		calls++
		if calls < 3 {
			return "", 503, http.Header{}, nil
		}
		return "ok", 200, http.Header{}, nil
	}

	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFactor: 0}
	out, status, _, err := Execute(context.Background(), cfg, "GET", "http://x", attempt, statusClassifier(3), nil)
	if err != nil || status != 200 || out != "ok" {
		t.Fatalf("Execute = %v, %v, %v", out, status, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecute_ExhaustsMaxRetries(t *testing.T) {
	calls := 0
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		calls++
		return "", 500, http.Header{}, nil
	}

	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFactor: 0}
	_, status, _, _ := Execute(context.Background(), cfg, "GET", "http://x", attempt, statusClassifier(2), nil)
	if status != 500 {
		t.Errorf("final status = %d, want 500", status)
	}
	if calls != 3 { // initial + 2 retries
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", calls)
	}
}

func TestExecute_RetryAfterPrecedence(t *testing.T) {
	var timestamps []time.Time
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		timestamps = append(timestamps, time.Now())
		if len(timestamps) == 1 {
			h := http.Header{}
			h.Set("Retry-After", "1")
			return "", 429, h, nil
		}
		return "ok", 200, http.Header{}, nil
	}

	cfg := Config{MaxRetries: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 30 * time.Second, JitterFactor: 0}
	_, status, _, err := Execute(context.Background(), cfg, "GET", "http://x", attempt, statusClassifier(3), nil)
	if err != nil || status != 200 {
		t.Fatalf("Execute = status=%v err=%v", status, err)
	}

	elapsed := timestamps[1].Sub(timestamps[0])
	if elapsed < 900*time.Millisecond || elapsed > 1400*time.Millisecond {
		t.Errorf("elapsed between attempts = %v, want ~1s (Retry-After should override base_delay=50ms)", elapsed)
	}
}

func TestExecute_TransportErrorRetried(t *testing.T) {
	calls := 0
	boom := errors.New("connection refused")
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		calls++
		if calls < 2 {
			return "", 0, nil, boom
		}
		return "ok", 200, http.Header{}, nil
	}

	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFactor: 0}
	out, status, _, err := Execute(context.Background(), cfg, "GET", "http://x", attempt, statusClassifier(3), nil)
	if err != nil || status != 200 || out != "ok" {
		t.Fatalf("Execute = %v, %v, %v", out, status, err)
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		return "", 503, http.Header{}, nil
	}

	cfg := Config{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterFactor: 0}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, _, err := Execute(ctx, cfg, "GET", "http://x", attempt, statusClassifier(5), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExecute_EmitsRetryEvents(t *testing.T) {
	var events []Event
	attempt := func(ctx context.Context) (string, int, http.Header, error) {
		return "", 503, http.Header{}, nil
	}

	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFactor: 0}
	_, _, _, _ = Execute(context.Background(), cfg, "POST", "http://x/y", attempt, statusClassifier(2), func(e Event) {
		events = append(events, e)
	})

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Method != "POST" || events[0].URL != "http://x/y" {
		t.Errorf("event method/url = %s %s", events[0].Method, events[0].URL)
	}
}
