package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Category groups error kinds by how a caller is expected to react.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryRateLimit      Category = "rateLimit"
	CategoryClient         Category = "client"
	CategoryServer         Category = "server"
	CategoryNetwork        Category = "network"
	CategoryParsing        Category = "parsing"
	CategoryTimeout        Category = "timeout"
	CategoryAPI            Category = "api"
)

// Kind is the precise failure classification of an Error.
type Kind string

const (
	KindInvalidAPIKey     Kind = "invalidAPIKey"
	KindQuotaExceeded     Kind = "quotaExceeded"
	KindContentFiltered   Kind = "contentFiltered"
	KindRateLimitExceeded Kind = "rateLimitExceeded"
	KindInvalidRequest    Kind = "invalidRequest"
	KindModelNotFound     Kind = "modelNotFound"
	KindModelOverloaded   Kind = "modelOverloaded"
	KindServerError       Kind = "serverError"
	KindNetworkError      Kind = "networkError"
	KindDecodingError     Kind = "decodingError"
	KindTimeoutError      Kind = "timeoutError"
	KindAPIError          Kind = "apiError"
)

// Category returns the category the kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindInvalidAPIKey:
		return CategoryAuthentication
	case KindQuotaExceeded, KindRateLimitExceeded:
		return CategoryRateLimit
	case KindContentFiltered, KindInvalidRequest, KindModelNotFound:
		return CategoryClient
	case KindModelOverloaded, KindServerError:
		return CategoryServer
	case KindNetworkError:
		return CategoryNetwork
	case KindDecodingError:
		return CategoryParsing
	case KindTimeoutError:
		return CategoryTimeout
	default:
		return CategoryAPI
	}
}

// Sentinel errors for classification. Every *Error matches the sentinel of
// its category through errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
	ErrTimeout      = errors.New("timeout")
	ErrAPI          = errors.New("api error")
)

// Validation errors with actionable guidance.
var (
	ErrModelRequired = errors.New("model required: pass a deployment to Client.Responses() or configure WithDefaultModel")
	ErrNoInput       = errors.New("no input: add at least one message using .User(), .Parts() or .ToolOutput()")
	ErrResponseID    = errors.New("response id required")
)

// APIErrorBody is the structured error object returned by the API.
type APIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// Error is the single error type surfaced by the SDK. Kind identifies the
// failure; the remaining fields carry the payload relevant to that kind.
type Error struct {
	Kind       Kind
	StatusCode int           // set for status-driven kinds and API errors
	Duration   time.Duration // set for KindTimeoutError
	Body       *APIErrorBody // server-supplied error body, if any
	RequestID  string
	Err        error // underlying cause for network and decoding errors
}

// Category returns the category of the error's kind.
func (e *Error) Category() Category {
	return e.Kind.Category()
}

// Message returns the most specific human readable message available.
func (e *Error) Message() string {
	if e.Body != nil && e.Body.Message != "" {
		return e.Body.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return http.StatusText(e.StatusCode)
	}
	return string(e.Kind)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "azresponses: %s: %s", e.Kind, e.Message())

	var details []string
	if e.StatusCode != 0 {
		details = append(details, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Kind == KindTimeoutError {
		details = append(details, fmt.Sprintf("after=%s", e.Duration))
	}
	if e.Body != nil && e.Body.Code != "" {
		details = append(details, "code="+e.Body.Code)
	}
	if e.RequestID != "" {
		details = append(details, "request_id="+e.RequestID)
	}
	if len(details) > 0 {
		b.WriteString(" (" + strings.Join(details, ", ") + ")")
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches category sentinels and, for another *Error, compares with Equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Equal(t)
	}
	switch target {
	case ErrUnauthorized:
		return e.Category() == CategoryAuthentication
	case ErrRateLimited:
		return e.Category() == CategoryRateLimit
	case ErrBadRequest:
		return e.Category() == CategoryClient
	case ErrNotFound:
		return e.Kind == KindModelNotFound
	case ErrServer:
		return e.Category() == CategoryServer
	case ErrNetwork:
		return e.Category() == CategoryNetwork
	case ErrDecode:
		return e.Category() == CategoryParsing
	case ErrTimeout:
		return e.Category() == CategoryTimeout
	case ErrAPI:
		return e.Category() == CategoryAPI
	}
	return false
}

// Equal reports whether two errors have the same kind and payload: status
// code, duration, message and cause text. Request ids are diagnostics and do
// not take part.
func (e *Error) Equal(o *Error) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Kind != o.Kind || e.StatusCode != o.StatusCode || e.Duration != o.Duration {
		return false
	}
	if bodyMessage(e.Body) != bodyMessage(o.Body) {
		return false
	}
	return causeText(e.Err) == causeText(o.Err)
}

func bodyMessage(b *APIErrorBody) string {
	if b == nil {
		return ""
	}
	return b.Message
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// KindForStatus maps a transport status code to an error kind. The second
// result is false for codes with no dedicated kind; callers fall back to an
// API error carrying the server's body.
func KindForStatus(status int) (Kind, bool) {
	switch {
	case status == http.StatusUnauthorized:
		return KindInvalidAPIKey, true
	case status == http.StatusForbidden:
		return KindQuotaExceeded, true
	case status == http.StatusUnprocessableEntity:
		return KindContentFiltered, true
	case status == http.StatusTooManyRequests:
		return KindRateLimitExceeded, true
	case status == http.StatusBadRequest:
		return KindInvalidRequest, true
	case status == http.StatusNotFound:
		return KindModelNotFound, true
	case status == http.StatusServiceUnavailable:
		return KindModelOverloaded, true
	case status >= 500 && status <= 599:
		return KindServerError, true
	default:
		return "", false
	}
}

// NewStatusError builds the error for a non-success status code.
func NewStatusError(status int, body *APIErrorBody, requestID string) *Error {
	kind, ok := KindForStatus(status)
	if !ok {
		kind = KindAPIError
	}
	return &Error{Kind: kind, StatusCode: status, Body: body, RequestID: requestID}
}

// NewServerError returns a serverError for the given status.
func NewServerError(status int) *Error {
	return &Error{Kind: KindServerError, StatusCode: status}
}

// NewNetworkError wraps a transport failure that happened before a status
// line was available.
func NewNetworkError(cause error) *Error {
	return &Error{Kind: KindNetworkError, Err: cause}
}

// NewDecodingError wraps a body that did not match the expected shape.
func NewDecodingError(cause error) *Error {
	return &Error{Kind: KindDecodingError, Err: cause}
}

// NewInvalidRequestError reports a request that could not be encoded, such
// as a file part with two sources or a non-finite number.
func NewInvalidRequestError(cause error) *Error {
	return &Error{Kind: KindInvalidRequest, Err: cause}
}

// NewTimeoutError reports that an operation exceeded its deadline d.
func NewTimeoutError(d time.Duration) *Error {
	return &Error{Kind: KindTimeoutError, Duration: d, Err: context.DeadlineExceeded}
}

// NewAPIError reports an API-level failure delivered over a successful
// transport, such as a failed response object or a stream error event.
func NewAPIError(body APIErrorBody) *Error {
	return &Error{Kind: KindAPIError, Body: &body}
}

// ErrorClassifier turns transport outcomes into typed errors.
type ErrorClassifier interface {
	// ClassifyStatus converts a non-2xx response into an error.
	ClassifyStatus(status int, header http.Header, body []byte) error

	// ClassifyTransport converts an error returned by the Transport.
	ClassifyTransport(err error) error
}

// DefaultClassifier understands OpenAI-style error envelopes:
// {"error":{"message":"...","type":"...","code":"...","param":"..."}}.
type DefaultClassifier struct{}

// errorEnvelope accepts both string and numeric codes, which Azure and
// OpenAI use interchangeably.
type errorEnvelope struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
		Param   string          `json:"param"`
	} `json:"error"`
}

// ClassifyStatus implements ErrorClassifier.
func (DefaultClassifier) ClassifyStatus(status int, header http.Header, body []byte) error {
	return NewStatusError(status, parseErrorBody(status, body), requestIDFromHeader(header))
}

// ClassifyTransport implements ErrorClassifier.
func (DefaultClassifier) ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewNetworkError(err)
}

func parseErrorBody(status int, body []byte) *APIErrorBody {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	out := &APIErrorBody{
		Message: env.Error.Message,
		Type:    env.Error.Type,
		Param:   env.Error.Param,
		Code:    rawCode(env.Error.Code),
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}

func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// DecodeErrorKind classifies JSON decoding failures.
type DecodeErrorKind int

const (
	// DecodeMalformed means the bytes are not valid JSON.
	DecodeMalformed DecodeErrorKind = iota
	// DecodeUnsupportedType means a discriminator named an unknown variant.
	DecodeUnsupportedType
	// DecodeInvalidField means a field had the wrong shape or violated a
	// variant invariant.
	DecodeInvalidField
)

// String returns the kind name.
func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeMalformed:
		return "malformed"
	case DecodeUnsupportedType:
		return "unsupported type"
	case DecodeInvalidField:
		return "invalid field"
	default:
		return "unknown"
	}
}

var errMalformedJSON = errors.New("malformed JSON")

// DecodeError is returned by the Json Variant and Content Model decoders.
type DecodeError struct {
	Kind  DecodeErrorKind
	Tag   string // discriminator value for DecodeUnsupportedType
	Field string // offending field for DecodeInvalidField
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	switch e.Kind {
	case DecodeUnsupportedType:
		return fmt.Sprintf("decode: unsupported type %q", e.Tag)
	case DecodeInvalidField:
		if e.Err != nil {
			return fmt.Sprintf("decode: invalid field %q: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("decode: invalid field %q", e.Field)
	default:
		if e.Err != nil {
			return "decode: " + e.Err.Error()
		}
		return "decode: malformed"
	}
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDecode) match any decode error.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func invalidField(field string, err error) *DecodeError {
	return &DecodeError{Kind: DecodeInvalidField, Field: field, Err: err}
}
