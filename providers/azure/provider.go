// Package azure implements core.Transport for Azure OpenAI and
// OpenAI-compatible Responses endpoints.
//
//	p, err := azure.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := core.NewClient(p, core.WithDefaultModel("gpt-4o"))
package azure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petal-labs/azresponses/core"
)

// Environment variables read by NewFromEnv.
const (
	EnvEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvAPIKey     = "AZURE_OPENAI_API_KEY"
	EnvAPIVersion = "AZURE_OPENAI_API_VERSION"
)

var (
	// ErrEndpointNotFound is returned when no endpoint is configured.
	ErrEndpointNotFound = errors.New("azure: AZURE_OPENAI_ENDPOINT environment variable not set")

	// ErrAPIKeyNotFound is returned when no key is configured.
	ErrAPIKeyNotFound = errors.New("azure: AZURE_OPENAI_API_KEY environment variable not set")
)

// maxErrorBody bounds how much of a failed streaming response is read.
const maxErrorBody = 1 << 20

// userAgent identifies the SDK to the service.
const userAgent = "azresponses-go"

// NewFromEnv creates a provider from AZURE_OPENAI_ENDPOINT,
// AZURE_OPENAI_API_KEY and, when set, AZURE_OPENAI_API_VERSION.
func NewFromEnv(opts ...Option) (*Provider, error) {
	endpoint := os.Getenv(EnvEndpoint)
	if endpoint == "" {
		return nil, ErrEndpointNotFound
	}
	key := os.Getenv(EnvAPIKey)
	if key == "" {
		return nil, ErrAPIKeyNotFound
	}
	if v := os.Getenv(EnvAPIVersion); v != "" {
		opts = append([]Option{WithAPIVersion(v)}, opts...)
	}
	return New(endpoint, key, opts...), nil
}

// Provider sends Responses API calls over HTTP.
// Provider is safe for concurrent use.
type Provider struct {
	endpoint   string
	apiKey     core.Secret
	authMode   AuthMode
	apiVersion string
	headers    http.Header
	httpClient *http.Client
	logger     *slog.Logger
	maxEvent   int
}

// New creates a provider for the given endpoint and key.
func New(endpoint, apiKey string, opts ...Option) *Provider {
	cfg := Config{
		Endpoint:     endpoint,
		APIKey:       apiKey,
		APIVersion:   DefaultAPIVersion,
		HTTPClient:   http.DefaultClient,
		MaxEventSize: DefaultMaxEventSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxEventSize <= 0 {
		cfg.MaxEventSize = DefaultMaxEventSize
	}

	httpClient := cfg.HTTPClient
	if cfg.otel {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		opts := append([]otelhttp.Option{otelhttp.WithSpanNameFormatter(spanName)}, cfg.otelOpts...)
		wrapped := *httpClient
		wrapped.Transport = otelhttp.NewTransport(base, opts...)
		httpClient = &wrapped
	}

	return &Provider{
		endpoint:   baseURL(cfg.Endpoint),
		apiKey:     core.NewSecret(cfg.APIKey),
		authMode:   cfg.AuthMode,
		apiVersion: cfg.APIVersion,
		headers:    cfg.Headers.Clone(),
		httpClient: httpClient,
		logger:     cfg.Logger,
		maxEvent:   cfg.MaxEventSize,
	}
}

// baseURL returns the API root for endpoint. A bare resource endpoint
// such as https://name.openai.azure.com gets the /openai prefix Azure
// serves the Responses API under; an endpoint that already carries a
// path (/openai, /openai/v1, or an OpenAI-compatible /v1) is kept.
func baseURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || u.Path != "" {
		return endpoint
	}
	return endpoint + "/openai"
}

func spanName(_ string, r *http.Request) string {
	return "azresponses " + r.Method
}

// Send performs a non-streaming call. Any status is returned to the
// caller for classification; only failures before a status line are
// errors.
func (p *Provider) Send(ctx context.Context, req *core.TransportRequest) (*core.TransportResponse, error) {
	start := time.Now()
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Debug("http request failed", "method", req.Method, "path", req.Path, "trace_id", req.TraceID, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("http request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"trace_id", req.TraceID,
		"duration", time.Since(start),
	)
	return &core.TransportResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// SendStream opens a server-sent event stream. On a non-2xx status the
// body is read into ErrorBody and no event source is returned.
func (p *Provider) SendStream(ctx context.Context, req *core.TransportRequest) (*core.StreamResponse, error) {
	httpReq, err := p.newRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Debug("stream request failed", "path", req.Path, "trace_id", req.TraceID, "error", err)
		return nil, err
	}

	p.logger.Debug("stream opened",
		"path", req.Path,
		"status", resp.StatusCode,
		"trace_id", req.TraceID,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &core.StreamResponse{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			ErrorBody:  body,
		}, nil
	}

	return &core.StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Events:     newEventReader(resp.Body, p.maxEvent),
	}, nil
}

func (p *Provider) newRequest(ctx context.Context, req *core.TransportRequest, stream bool) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, p.buildURL(req.Path), body)
	if err != nil {
		return nil, err
	}
	for key, values := range p.buildHeaders(req, stream) {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

// buildURL joins the endpoint and path and adds api-version.
func (p *Provider) buildURL(path string) string {
	u := p.endpoint + path
	if p.apiVersion == "" {
		return u
	}
	return u + "?api-version=" + url.QueryEscape(p.apiVersion)
}

// buildHeaders constructs the HTTP headers for an API request.
func (p *Provider) buildHeaders(req *core.TransportRequest, stream bool) http.Header {
	headers := make(http.Header)

	switch p.authMode {
	case AuthBearer:
		headers.Set("Authorization", "Bearer "+p.apiKey.Expose())
	default:
		headers.Set("api-key", p.apiKey.Expose())
	}
	if req.Body != nil {
		headers.Set("Content-Type", "application/json")
	}
	if stream {
		headers.Set("Accept", "text/event-stream")
	} else {
		headers.Set("Accept", "application/json")
	}
	headers.Set("User-Agent", userAgent)
	if req.TraceID != "" {
		headers.Set(core.HeaderClientRequest, req.TraceID)
	}

	for key, values := range p.headers {
		for _, v := range values {
			headers.Add(key, v)
		}
	}
	for key, values := range req.Header {
		for _, v := range values {
			headers.Add(key, v)
		}
	}
	return headers
}

// Compile-time check that Provider implements core.Transport.
var _ core.Transport = (*Provider)(nil)
