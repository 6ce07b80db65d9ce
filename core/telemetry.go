package core

import "time"

// Operation names reported to telemetry hooks.
const (
	OpCreate     = "create"
	OpStream     = "stream"
	OpRetrieve   = "retrieve"
	OpDelete     = "delete"
	OpEmbeddings = "embeddings"
)

// TelemetryHook receives notifications about request lifecycle events.
// Implementations can use this for logging, metrics, tracing, etc.
//
// # Security Considerations
//
// Event types never include sensitive data:
//   - API keys are never included (stored separately as core.Secret)
//   - Prompt content is never included
//   - Response content is never included
//   - Only operational metadata is exposed (operation, model, timing, token counts)
//
// If extending this interface, maintain these properties.
type TelemetryHook interface {
	// OnRequestStart is called when a client operation begins.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called when a client operation completes.
	OnRequestEnd(e RequestEndEvent)
}

// RequestStartEvent contains metadata about a starting request.
type RequestStartEvent struct {
	Operation string    // OpCreate, OpStream, ...
	Model     string    // Deployment or model being called
	TraceID   string    // Client-side trace id, sent as x-ms-client-request-id
	Start     time.Time // When the request started
}

// RequestEndEvent contains metadata about a completed request.
//
// The Err field carries the typed error, not raw provider bodies.
type RequestEndEvent struct {
	Operation  string
	Model      string
	TraceID    string
	ResponseID string
	RequestID  string // server request id, when known
	Start      time.Time
	End        time.Time
	Usage      Usage
	Attempts   int  // transport attempts including retries
	CacheHit   bool // served from the response cache
	FellBack   bool // stream abandoned for a non-streaming request
	Err        error
}

// Duration returns the elapsed time for the request.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
// Use this as a default when no telemetry is configured.
type NoopTelemetryHook struct{}

// OnRequestStart does nothing.
func (NoopTelemetryHook) OnRequestStart(RequestStartEvent) {}

// OnRequestEnd does nothing.
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent) {}

// Compile-time check that NoopTelemetryHook implements TelemetryHook.
var _ TelemetryHook = NoopTelemetryHook{}

// MultiTelemetryHook fans events out to several hooks in order.
type MultiTelemetryHook []TelemetryHook

// OnRequestStart implements TelemetryHook.
func (m MultiTelemetryHook) OnRequestStart(e RequestStartEvent) {
	for _, h := range m {
		h.OnRequestStart(e)
	}
}

// OnRequestEnd implements TelemetryHook.
func (m MultiTelemetryHook) OnRequestEnd(e RequestEndEvent) {
	for _, h := range m {
		h.OnRequestEnd(e)
	}
}
