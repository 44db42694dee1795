package httpguardtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/httpguard/request"
)

// Responder answers one adapter call.
type Responder func(ctx context.Context, method request.Method, url string, body []byte, headers request.Header) (*request.Response, error)

// scriptedResponse is a canned response or error returned in FIFO order.
type scriptedResponse struct {
	resp *request.Response
	err  error
}

// MockAdapter is an adapter.Adapter whose responses are scripted ahead of
// time or computed via a Responder func, and which records every call it
// receives for assertions.
type MockAdapter struct {
	mu        sync.Mutex
	queue     map[string][]scriptedResponse
	responder Responder
	calls     []Call
}

// Call is one recorded invocation of the mock.
type Call struct {
	Method  request.Method
	URL     string
	Body    []byte
	Headers request.Header
}

// NewMockAdapter creates an empty MockAdapter. Use Enqueue to script
// responses per URL, or SetResponder to compute one dynamically.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{queue: make(map[string][]scriptedResponse)}
}

// Enqueue appends a canned (response, nil) for url, served in FIFO order on
// successive calls to that url.
func (m *MockAdapter) Enqueue(url string, resp *request.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[url] = append(m.queue[url], scriptedResponse{resp: resp})
}

// EnqueueError appends a canned error for url.
func (m *MockAdapter) EnqueueError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[url] = append(m.queue[url], scriptedResponse{err: err})
}

// SetResponder installs a dynamic responder, consulted when no scripted
// response remains queued for the requested URL.
func (m *MockAdapter) SetResponder(fn Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// Calls returns every call recorded so far.
func (m *MockAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls recorded so far, optionally
// filtered to a single url ("" for all).
func (m *MockAdapter) CallCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if url == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.URL == url {
			n++
		}
	}
	return n
}

func (m *MockAdapter) Request(ctx context.Context, method request.Method, url string, body []byte, headers request.Header) (*request.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: method, URL: url, Body: body, Headers: headers.Clone()})

	if q := m.queue[url]; len(q) > 0 {
		next := q[0]
		m.queue[url] = q[1:]
		m.mu.Unlock()
		return next.resp, next.err
	}
	responder := m.responder
	m.mu.Unlock()

	if responder != nil {
		return responder(ctx, method, url, body, headers)
	}
	return nil, fmt.Errorf("httpguardtest: no scripted response for %s %s", method, url)
}
