package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// HeaderFormat identifies which rate-limit header family was matched.
type HeaderFormat string

// Recognized formats, tried in this order when Format is FormatAuto.
const (
	FormatAuto      HeaderFormat = "auto"
	FormatGitHub    HeaderFormat = "github"   // x-ratelimit-{limit,remaining,reset}
	FormatIETF      HeaderFormat = "ietf"     // ratelimit-{limit,remaining,reset}
	FormatStripe    HeaderFormat = "stripe"   // x-stripe-ratelimit-{limit,remaining,reset}
	FormatNotFound  HeaderFormat = "not_found"
)

// HeaderLimits is the decoded result of a rate-limit header lookup.
type HeaderLimits struct {
	Format    HeaderFormat
	Limit     int
	Remaining int
	ResetAt   time.Time
	Found     bool
}

type headerTriple struct {
	format              HeaderFormat
	limit, remain, reset string
}

// Lookup order: GitHub/Twitter, then IETF RFC, then Stripe. All header
// lookups are case-insensitive because http.Header's Get canonicalizes
// the key.
var headerFormats = []headerTriple{
	{FormatGitHub, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	{FormatIETF, "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
	{FormatStripe, "X-Stripe-RateLimit-Limit", "X-Stripe-RateLimit-Remaining", "X-Stripe-RateLimit-Reset"},
}

// ParseHeaders decodes rate-limit headers from an HTTP response header set.
// When format is FormatAuto it tries each known format in order and returns
// the first match; an explicit format restricts the lookup to that family.
func ParseHeaders(h http.Header, format HeaderFormat) HeaderLimits {
	for _, f := range headerFormats {
		if format != FormatAuto && format != f.format {
			continue
		}
		limitStr := h.Get(f.limit)
		remainStr := h.Get(f.remain)
		resetStr := h.Get(f.reset)
		if limitStr == "" && remainStr == "" && resetStr == "" {
			continue
		}

		limit, lok := parseInt(limitStr)
		remain, rok := parseInt(remainStr)
		resetSec, rsok := parseInt(resetStr)
		if !lok && !rok && !rsok {
			continue
		}

		out := HeaderLimits{Format: f.format, Found: true}
		if lok {
			out.Limit = limit
		}
		if rok {
			out.Remaining = remain
		}
		if rsok {
			out.ResetAt = time.Unix(int64(resetSec), 0)
		}
		return out
	}
	return HeaderLimits{Format: FormatNotFound}
}

// parseInt parses a header value as a plain integer. Whitespace is
// deliberately not trimmed: a header value like " 42" fails to parse,
// matching the reference parser's strictness.
func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseRetryAfter decodes a Retry-After header value: integer seconds (>=0)
// first, else IMF-fixdate ("Wed, 21 Oct 2015 07:28:00 GMT") converted to a
// duration clamped to >= 0. Returns (0, false) when neither form parses.
// Whitespace is not stripped, matching the reference parser's strictness.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}
