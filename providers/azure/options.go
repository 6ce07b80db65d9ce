package azure

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAPIVersion is the api-version query value sent when none is set.
const DefaultAPIVersion = "2025-04-01-preview"

// DefaultMaxEventSize bounds a single server-sent event payload.
const DefaultMaxEventSize = 4 << 20

// AuthMode selects how the key is presented.
type AuthMode int

const (
	// AuthAPIKey sends the key in the api-key header (Azure OpenAI).
	AuthAPIKey AuthMode = iota
	// AuthBearer sends "Authorization: Bearer <key>", for OpenAI-compatible
	// endpoints and Entra ID tokens.
	AuthBearer
)

// Config holds configuration for the Azure provider.
type Config struct {
	// Endpoint is the API base, e.g. https://myres.openai.azure.com/openai.
	Endpoint string

	// APIKey is the resource key or bearer token (required).
	APIKey string

	AuthMode AuthMode

	// APIVersion is sent as the api-version query parameter. Empty omits it,
	// which the v1 endpoints and OpenAI accept.
	APIVersion string

	// HTTPClient is the HTTP client to use. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Headers contains optional extra headers to include in requests.
	Headers http.Header

	Logger *slog.Logger

	// MaxEventSize bounds one SSE data payload.
	MaxEventSize int

	otel     bool
	otelOpts []otelhttp.Option
}

// Option configures the Azure provider.
type Option func(*Config)

// WithAPIVersion sets the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Config) {
		c.APIVersion = v
	}
}

// WithBearerAuth sends the key as a bearer token instead of an api-key
// header.
func WithBearerAuth() Option {
	return func(c *Config) {
		c.AuthMode = AuthBearer
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithHeader adds an extra header to include in requests.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Set(key, value)
	}
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMaxEventSize bounds a single SSE payload in bytes.
func WithMaxEventSize(n int) Option {
	return func(c *Config) {
		c.MaxEventSize = n
	}
}

// WithOpenTelemetry wraps the HTTP transport with otelhttp so every call
// produces a client span and propagates trace context.
func WithOpenTelemetry(opts ...otelhttp.Option) Option {
	return func(c *Config) {
		c.otel = true
		c.otelOpts = append(c.otelOpts, opts...)
	}
}
