package core

import (
	"context"
	"net/http"
)

// TransportRequest is one HTTP call against the API, relative to the
// transport's base endpoint.
type TransportRequest struct {
	Method  string
	Path    string // e.g. "/responses", "/responses/resp_123"
	Body    []byte // nil for GET and DELETE
	Header  http.Header
	TraceID string
}

// TransportResponse is a fully-read non-streaming response.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// EventSource yields discrete protocol events, one JSON payload per
// server-sent-event frame. Next returns io.EOF once the stream ends.
type EventSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// StreamResponse is the result of a streaming send. Events is nil when
// StatusCode is not 2xx; ErrorBody then holds the response body.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Events     EventSource
	ErrorBody  []byte
}

// Transport performs HTTP calls. The core does not own TLS, pooling or
// authentication; implementations such as providers/azure do.
type Transport interface {
	Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
	SendStream(ctx context.Context, req *TransportRequest) (*StreamResponse, error)
}
