package core

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names consumed from API responses.
const (
	HeaderRequestID      = "x-request-id"
	HeaderAPIMRequestID  = "apim-request-id"
	HeaderProcessingMS   = "openai-processing-ms"
	HeaderClientRequest  = "x-ms-client-request-id"
	headerRateLimitLimit = "x-ratelimit-limit-"
	headerRateLimitLeft  = "x-ratelimit-remaining-"
	headerRateLimitReset = "x-ratelimit-reset-"
)

// Envelope wraps a decoded payload with the transport metadata that came
// with it. Envelopes are immutable after construction.
type Envelope[T any] struct {
	Payload    T
	Metadata   Metadata
	StatusCode int
	Headers    map[string]string // lower-cased keys
}

// Metadata is derived from the response headers.
type Metadata struct {
	RequestID      string
	Timestamp      time.Time
	ProcessingTime *time.Duration
	RateLimit      *RateLimit
}

// RateLimit carries the server's rate-limit headers. Zero fields were not
// reported.
type RateLimit struct {
	LimitRequests     int
	LimitTokens       int
	RemainingRequests int
	RemainingTokens   int
	ResetRequests     time.Duration
	ResetTokens       time.Duration
}

// Header returns the value of the named response header. The lookup is
// case-insensitive.
func (e *Envelope[T]) Header(name string) string {
	return e.Headers[strings.ToLower(name)]
}

// NewEnvelope builds an envelope from a payload and the response status and
// headers. The timestamp is taken from now.
func NewEnvelope[T any](payload T, status int, header http.Header, now time.Time) *Envelope[T] {
	return &Envelope[T]{
		Payload:    payload,
		Metadata:   ParseMetadata(header, now),
		StatusCode: status,
		Headers:    flattenHeaders(header),
	}
}

// ParseMetadata extracts request id, processing time and rate-limit state
// from response headers.
func ParseMetadata(header http.Header, now time.Time) Metadata {
	md := Metadata{
		RequestID: requestIDFromHeader(header),
		Timestamp: now,
	}
	if ms, err := strconv.ParseFloat(header.Get(HeaderProcessingMS), 64); err == nil {
		d := time.Duration(ms * float64(time.Millisecond))
		md.ProcessingTime = &d
	}
	md.RateLimit = parseRateLimit(header)
	return md
}

func requestIDFromHeader(header http.Header) string {
	if id := header.Get(HeaderRequestID); id != "" {
		return id
	}
	return header.Get(HeaderAPIMRequestID)
}

func parseRateLimit(header http.Header) *RateLimit {
	var rl RateLimit
	found := false

	ints := []struct {
		name string
		dst  *int
	}{
		{headerRateLimitLimit + "requests", &rl.LimitRequests},
		{headerRateLimitLimit + "tokens", &rl.LimitTokens},
		{headerRateLimitLeft + "requests", &rl.RemainingRequests},
		{headerRateLimitLeft + "tokens", &rl.RemainingTokens},
	}
	for _, h := range ints {
		if n, err := strconv.Atoi(header.Get(h.name)); err == nil {
			*h.dst = n
			found = true
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{headerRateLimitReset + "requests", &rl.ResetRequests},
		{headerRateLimitReset + "tokens", &rl.ResetTokens},
	}
	for _, h := range durations {
		if d, ok := parseResetDuration(header.Get(h.name)); ok {
			*h.dst = d
			found = true
		}
	}

	if !found {
		return nil
	}
	return &rl
}

// parseResetDuration accepts Go-style durations ("1s", "6m0s", "20ms") and
// bare numbers of seconds.
func parseResetDuration(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for k, v := range header {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
