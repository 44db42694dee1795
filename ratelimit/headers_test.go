package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseHeaders_GitHubFormat(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "60")
	h.Set("X-RateLimit-Remaining", "42")
	h.Set("X-RateLimit-Reset", "1700000000")

	got := ParseHeaders(h, FormatAuto)
	if !got.Found || got.Format != FormatGitHub {
		t.Fatalf("ParseHeaders = %+v, want GitHub format found", got)
	}
	if got.Limit != 60 || got.Remaining != 42 {
		t.Errorf("limit/remaining = %d/%d, want 60/42", got.Limit, got.Remaining)
	}
}

func TestParseHeaders_IETFFallback(t *testing.T) {
	h := http.Header{}
	h.Set("RateLimit-Limit", "100")
	h.Set("RateLimit-Remaining", "5")

	got := ParseHeaders(h, FormatAuto)
	if !got.Found || got.Format != FormatIETF {
		t.Fatalf("ParseHeaders = %+v, want IETF format found", got)
	}
}

func TestParseHeaders_StripeFallback(t *testing.T) {
	h := http.Header{}
	h.Set("X-Stripe-RateLimit-Limit", "25")
	h.Set("X-Stripe-RateLimit-Remaining", "1")

	got := ParseHeaders(h, FormatAuto)
	if !got.Found || got.Format != FormatStripe {
		t.Fatalf("ParseHeaders = %+v, want Stripe format found", got)
	}
}

func TestParseHeaders_NotFound(t *testing.T) {
	h := http.Header{}
	got := ParseHeaders(h, FormatAuto)
	if got.Found {
		t.Errorf("ParseHeaders = %+v, want not found", got)
	}
}

func TestParseRetryAfter_IntegerSeconds(t *testing.T) {
	now := time.Now()
	d, ok := ParseRetryAfter("120", now)
	if !ok || d != 120*time.Second {
		t.Errorf("ParseRetryAfter(120) = %v, %v, want 120s, true", d, ok)
	}
}

func TestParseRetryAfter_NegativeRejected(t *testing.T) {
	if _, ok := ParseRetryAfter("-5", time.Now()); ok {
		t.Errorf("ParseRetryAfter(-5) should not parse")
	}
}

func TestParseRetryAfter_IMFFixdate(t *testing.T) {
	now := time.Date(2015, 10, 21, 7, 27, 0, 0, time.UTC)
	d, ok := ParseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT", now)
	if !ok {
		t.Fatalf("expected IMF-fixdate to parse")
	}
	if d != 60*time.Second {
		t.Errorf("ParseRetryAfter date = %v, want 60s", d)
	}
}

func TestParseRetryAfter_PastDateClampsToZero(t *testing.T) {
	now := time.Date(2015, 10, 21, 8, 0, 0, 0, time.UTC)
	d, ok := ParseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT", now)
	if !ok {
		t.Fatalf("expected IMF-fixdate to parse")
	}
	if d != 0 {
		t.Errorf("ParseRetryAfter past date = %v, want 0", d)
	}
}

func TestParseRetryAfter_NotFound(t *testing.T) {
	if _, ok := ParseRetryAfter("not-a-date-or-int", time.Now()); ok {
		t.Errorf("ParseRetryAfter garbage should not parse")
	}
}
