package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/jonwraymond/httpguard/request"
)

// Adapter is the transport contract every call ultimately goes through.
// Implementations must not raise: every transport failure is translated
// to one of the request.Reason transport values.
type Adapter interface {
	Request(ctx context.Context, method request.Method, url string, body []byte, headers request.Header) (*request.Response, error)
}

// Config configures the default net/http-backed Adapter. It intentionally
// carries none of a production deployment's TLS/connection-pooling policy —
// callers who need that supply their own http.Client via HTTPClient.
type Config struct {
	HTTPClient *http.Client
}

// httpAdapter is the default Adapter, a thin wrapper over *http.Client.
type httpAdapter struct {
	client *http.Client
}

// New builds the default net/http-backed Adapter.
func New(cfg Config) Adapter {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &httpAdapter{client: client}
}

func (a *httpAdapter) Request(ctx context.Context, method request.Method, url string, body []byte, headers request.Header) (*request.Response, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), url, bodyReader)
	if err != nil {
		return nil, &request.Error{Reason: request.ReasonInvalidURL, Err: err}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	respHeaders := request.NewHeader()
	for k, vs := range resp.Header {
		for _, v := range vs {
			respHeaders.Add(k, v)
		}
	}

	return &request.Response{Status: resp.StatusCode, Headers: respHeaders, Body: respBody}, nil
}

// classifyTransportError maps a net/http transport error onto the reason
// taxonomy used for transport failures.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &request.Error{Reason: request.ReasonTimeout, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &request.Error{Reason: request.ReasonTimeout, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &request.Error{Reason: request.ReasonConnRefused, Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return &request.Error{Reason: request.ReasonConnReset, Err: err}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &request.Error{Reason: request.ReasonClosed, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return &request.Error{Reason: request.ReasonNXDomain, Err: err}
	}

	return &request.Error{Reason: request.ReasonClosed, Err: err}
}
