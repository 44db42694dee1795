package request

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Method is an HTTP method recognized by the core.
type Method string

// Recognized methods.
const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

var validMethods = map[Method]bool{
	MethodGet: true, MethodPost: true, MethodPut: true, MethodDelete: true,
	MethodPatch: true, MethodHead: true, MethodOptions: true,
}

// Header is a case-insensitive map of header name to its list of values.
// Keys are stored canonicalized (lower-cased); Get/Set/Add/Del all
// canonicalize their key argument so callers never need to care about case.
type Header map[string][]string

// NewHeader creates an empty Header.
func NewHeader() Header {
	return make(Header)
}

func canonKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns the first value for key, or "" if absent.
func (h Header) Get(key string) string {
	v := h[canonKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns all values for key.
func (h Header) Values(key string) []string {
	return h[canonKey(key)]
}

// Set replaces all values for key.
func (h Header) Set(key, value string) {
	h[canonKey(key)] = []string{value}
}

// Add appends a value for key.
func (h Header) Add(key, value string) {
	k := canonKey(key)
	h[k] = append(h[k], value)
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, canonKey(key))
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Key identifies a slot in a Request's private scratch map. Stages define
// their own Key constants so they don't collide with each other.
type Key string

// Request is the immutable (from the caller's view) record that flows
// through the pipeline. Stages that need to change method/url/body/headers
// return a modified copy (see With*); stages that need to stash
// coordination state (a dedup token, a post-hook) use Private, which is
// shared by reference across copies so post-hooks registered by an earlier
// stage are visible after later stages run.
type Request struct {
	Method  Method
	URL     *url.URL
	Body    []byte
	Headers Header
	Opts    Options

	// CorrelationID identifies this logical request across every
	// telemetry event it produces (request.start/stop, retry.attempt,
	// rate_limit.*, dedup.*), so a log/trace sink can join them even
	// though they're emitted from different stages at different times.
	CorrelationID string

	// Private is a symbolic-key scratch map threaded through the pipeline.
	// It is intentionally a shared reference, not copied by With*, so a
	// stage can register a post-hook that later code (after the adapter
	// call) can retrieve regardless of which stage's copy of Request it
	// holds.
	Private map[Key]any
}

// New constructs a Request, validating it.
//
// Construction fails with a reason-invalid_url Error when the URL scheme
// isn't http/https, the host is empty, or the method isn't recognized.
func New(method Method, rawURL string, body []byte, headers Header, opts Options) (*Request, error) {
	if !validMethods[method] {
		return nil, &Error{Reason: ReasonInvalidURL, Message: fmt.Sprintf("unsupported method %q", method)}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Reason: ReasonInvalidURL, Message: "malformed url", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &Error{Reason: ReasonInvalidURL, Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &Error{Reason: ReasonInvalidURL, Message: "missing host"}
	}

	if headers == nil {
		headers = NewHeader()
	}

	return &Request{
		Method:        method,
		URL:           u,
		Body:          body,
		Headers:       headers,
		Opts:          opts,
		CorrelationID: uuid.NewString(),
		Private:       make(map[Key]any),
	}, nil
}

// WithHeaders returns a copy of r with headers replaced.
func (r *Request) WithHeaders(h Header) *Request {
	cp := *r
	cp.Headers = h
	return &cp
}

// WithBody returns a copy of r with the body replaced.
func (r *Request) WithBody(body []byte) *Request {
	cp := *r
	cp.Body = body
	return &cp
}

// WithURL returns a copy of r with the URL replaced.
func (r *Request) WithURL(u *url.URL) *Request {
	cp := *r
	cp.URL = u
	return &cp
}

// Get retrieves a value from Private.
func (r *Request) Get(key Key) (any, bool) {
	v, ok := r.Private[key]
	return v, ok
}

// Set stores a value in Private. Because Private is shared by reference,
// this is visible to every copy of the Request derived via With*.
func (r *Request) Set(key Key, value any) {
	r.Private[key] = value
}

// RateLimitKey returns the caller-supplied rate-limit key, falling back to
// the URL host.
func (r *Request) RateLimitKey() string {
	if r.Opts.RateLimitKey != "" {
		return r.Opts.RateLimitKey
	}
	return r.URL.Host
}

// CircuitKey returns the caller-supplied circuit-breaker key, falling back
// to the URL host.
func (r *Request) CircuitKey() string {
	if r.Opts.CircuitBreakerKey != "" {
		return r.Opts.CircuitBreakerKey
	}
	return r.URL.Host
}

// SanitizedURL strips query and fragment and drops default ports
// (used for request.start/request.stop telemetry).
func (r *Request) SanitizedURL() string {
	u := *r.URL
	u.RawQuery = ""
	u.Fragment = ""
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	return u.String()
}

// Response is the result of a successful adapter call.
type Response struct {
	Status  int
	Headers Header
	Body    []byte
}

// Clone returns a deep copy of resp.
func (resp *Response) Clone() *Response {
	if resp == nil {
		return nil
	}
	bodyCopy := make([]byte, len(resp.Body))
	copy(bodyCopy, resp.Body)
	return &Response{Status: resp.Status, Headers: resp.Headers.Clone(), Body: bodyCopy}
}
