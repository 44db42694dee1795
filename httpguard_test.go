package httpguard

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/httpguard/core"
	"github.com/jonwraymond/httpguard/httpguardtest"
	"github.com/jonwraymond/httpguard/request"
)

func TestClient_GetSuccess(t *testing.T) {
	mock := httpguardtest.NewMockAdapter()
	mock.Enqueue("https://api.example.com/v1/widgets", &request.Response{Status: 200, Body: []byte("ok")})

	c := New(WithAdapter(mock))
	defer c.Close()

	resp, err := c.Get(context.Background(), "https://api.example.com/v1/widgets", nil, request.Options{})
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if resp.Status != 200 || string(resp.Body) != "ok" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_InvalidURL(t *testing.T) {
	c := New(WithAdapter(httpguardtest.NewMockAdapter()))
	defer c.Close()

	_, err := c.Get(context.Background(), "ftp://bad.example.com", nil, request.Options{})
	rerr, ok := err.(*request.Error)
	if !ok || rerr.Reason != request.ReasonInvalidURL {
		t.Fatalf("err = %v, want invalid_url", err)
	}
}

func TestClient_TestModeBlocksNetwork(t *testing.T) {
	mock := httpguardtest.NewMockAdapter()
	mock.Enqueue("https://api.example.com/v1/widgets", &request.Response{Status: 200})

	c := New(WithAdapter(mock))
	defer c.Close()

	_, err := c.Get(context.Background(), "https://api.example.com/v1/widgets", nil,
		request.Options{TestMode: request.TestModeBlocked})

	rerr, ok := err.(*request.Error)
	if !ok || rerr.Reason != request.ReasonNetworkBlocked {
		t.Fatalf("err = %v, want network_blocked", err)
	}
	if got := mock.CallCount(""); got != 0 {
		t.Errorf("adapter invoked %d times, want 0", got)
	}
}

func TestClient_PaymentProcessingProfile(t *testing.T) {
	mock := httpguardtest.NewMockAdapter()
	mock.SetResponder(func(ctx context.Context, method request.Method, url string, body []byte, headers request.Header) (*request.Response, error) {
		return &request.Response{Status: 500}, nil
	})

	c := New(WithAdapter(mock), WithProfile(core.ProfilePaymentProcessing))
	defer c.Close()

	// Override the profile's retry backoff so a failing call doesn't sleep
	// for real seconds; request.Options.Merge replaces the whole Retry
	// struct wholesale, not field by field, so MaxRetries/RetrySafe are
	// repeated here too.
	profileOpts, _ := core.ProfileOptions(core.ProfilePaymentProcessing)
	fastRetry := request.Options{Retry: profileOpts.Retry}
	fastRetry.Retry.BaseDelay = time.Millisecond
	fastRetry.Retry.MaxDelay = time.Millisecond

	// payment_processing trips the circuit after 2 failures; the 3rd call
	// should be rejected without reaching the adapter.
	for i := 0; i < 2; i++ {
		if _, err := c.Post(context.Background(), "https://pay.example.com/charge", []byte(`{}`), nil, fastRetry); err == nil {
			t.Fatalf("call %d: want an error", i)
		}
	}
	_, err := c.Post(context.Background(), "https://pay.example.com/charge", []byte(`{}`), nil, fastRetry)
	rerr, ok := err.(*request.Error)
	if !ok || rerr.Reason != request.ReasonServiceUnavailable {
		t.Fatalf("3rd call err = %v, want service_unavailable", err)
	}
}
