// Package httpguard is the public façade over the resilience core: a
// Client that applies a profile plus per-call overrides, and GET/POST/PUT/
// DELETE/PATCH/HEAD/OPTIONS convenience wrappers around core.Engine.Do.
package httpguard

import (
	"context"
	"net/http"

	"github.com/jonwraymond/httpguard/adapter"
	"github.com/jonwraymond/httpguard/core"
	"github.com/jonwraymond/httpguard/request"
	"github.com/jonwraymond/httpguard/telemetry"
)

// Client is a resilient HTTP client: an Engine plus a resolved baseline
// Options every call starts from. The baseline, the profile bundle and the
// per-call options are combined with request.Options.Merge, which replaces
// the Retry config and each rate-limit/circuit/dedup Setting as a whole
// rather than field by field.
type Client struct {
	engine  *core.Engine
	base    request.Options
	profile core.Profile
}

// Option configures a Client at construction time.
type Option func(*clientConfig)

type clientConfig struct {
	adapterCfg adapter.Config
	adapter    adapter.Adapter
	emitter    telemetry.Emitter
	base       request.Options
	profile    core.Profile
}

// WithAdapter installs a custom Adapter (e.g. httpguardtest.MockAdapter),
// overriding the default net/http adapter.
func WithAdapter(a adapter.Adapter) Option {
	return func(c *clientConfig) { c.adapter = a }
}

// WithHTTPClient configures the default net/http adapter's underlying
// *http.Client, when no custom Adapter is supplied via WithAdapter.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.adapterCfg = adapter.Config{HTTPClient: hc} }
}

// WithEmitter installs the telemetry sink. Defaults to telemetry.Noop{}.
func WithEmitter(e telemetry.Emitter) Option {
	return func(c *clientConfig) { c.emitter = e }
}

// WithProfile selects one of the predefined option bundles:
// payment_processing, high_volume_api, microservices_mesh.
func WithProfile(p core.Profile) Option {
	return func(c *clientConfig) { c.profile = p }
}

// WithOptions merges opts onto the client's baseline Options with
// request.Options.Merge (whole-struct replacement for Retry and the
// Settings, not a field-by-field merge), applied before any per-profile
// bundle.
func WithOptions(opts request.Options) Option {
	return func(c *clientConfig) { c.base = c.base.Merge(opts) }
}

// New builds a Client. With no options it uses a net/http adapter, a
// no-op telemetry sink, and request.DefaultOptions().
func New(opts ...Option) *Client {
	cfg := clientConfig{base: request.DefaultOptions()}
	for _, opt := range opts {
		opt(&cfg)
	}

	ad := cfg.adapter
	if ad == nil {
		ad = adapter.New(cfg.adapterCfg)
	}

	return &Client{
		engine:  core.New(ad, cfg.emitter),
		base:    cfg.base,
		profile: cfg.profile,
	}
}

// Close stops the client's background janitors.
func (c *Client) Close() { c.engine.Close() }

// Do resolves opts against the client's baseline + profile (
// ResolveOptions precedence) and executes one fully-gated request.
func (c *Client) Do(ctx context.Context, method request.Method, rawURL string, body []byte, headers request.Header, opts request.Options) (*request.Response, error) {
	resolved := core.ResolveOptions(c.base, c.profile, opts)
	req, err := request.New(method, rawURL, body, headers, resolved)
	if err != nil {
		return nil, err
	}
	return c.engine.Do(ctx, req)
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodGet, url, nil, headers, opts)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodPost, url, body, headers, opts)
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, url string, body []byte, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodPut, url, body, headers, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodDelete, url, nil, headers, opts)
}

// Patch issues a PATCH request with body.
func (c *Client) Patch(ctx context.Context, url string, body []byte, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodPatch, url, body, headers, opts)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, url string, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodHead, url, nil, headers, opts)
}

// Options issues an OPTIONS request.
func (c *Client) Options(ctx context.Context, url string, headers request.Header, opts request.Options) (*request.Response, error) {
	return c.Do(ctx, request.MethodOptions, url, nil, headers, opts)
}
