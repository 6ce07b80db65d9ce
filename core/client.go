package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// API paths relative to the transport's base endpoint.
const (
	pathResponses  = "/responses"
	pathEmbeddings = "/embeddings"
)

// ResponseCache stores response envelopes by request fingerprint and
// collapses concurrent identical fetches. *cache.Cache satisfies it.
type ResponseCache interface {
	Get(key string) (*Envelope[*Response], bool)
	Put(key string, env *Envelope[*Response])
	GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (*Envelope[*Response], error)) (*Envelope[*Response], error)
}

// Client is the main entry point for the Responses API.
// Client is safe for concurrent use.
type Client struct {
	transport    Transport
	cache        ResponseCache
	classifier   ErrorClassifier
	telemetry    TelemetryHook
	retry        RetryPolicy
	logger       *slog.Logger
	timeout      time.Duration
	defaultModel string
	decoderOpts  []DecoderOption
	now          func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Client sending requests through t.
func NewClient(t Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport:  t,
		classifier: DefaultClassifier{},
		telemetry:  NoopTelemetryHook{},
		retry:      DefaultRetryPolicy(),
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCache enables response caching. Without a cache every call reaches
// the transport.
func WithCache(rc ResponseCache) ClientOption {
	return func(c *Client) {
		c.cache = rc
	}
}

// WithClassifier replaces the error classifier.
func WithClassifier(ec ErrorClassifier) ClientOption {
	return func(c *Client) {
		if ec != nil {
			c.classifier = ec
		}
	}
}

// WithTelemetry sets the telemetry hook for the client.
func WithTelemetry(h TelemetryHook) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.telemetry = h
		}
	}
}

// WithRetryPolicy sets the retry policy for the client.
func WithRetryPolicy(r RetryPolicy) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.retry = r
		}
	}
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds every operation. Exceeding it yields a timeout error.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithDefaultModel sets the deployment used when a request names none.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithDecoderOptions configures the stream decoder used by Stream.
func WithDecoderOptions(opts ...DecoderOption) ClientOption {
	return func(c *Client) {
		c.decoderOpts = append(c.decoderOpts, opts...)
	}
}

// WithClock overrides the time source for envelope timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Responses returns a ResponseBuilder for the given deployment.
func (c *Client) Responses(model string) *ResponseBuilder {
	return &ResponseBuilder{
		client: c,
		req:    Request{Model: model},
	}
}

// Create sends a non-streaming request. Exactly one of the returned
// envelope and error is non-nil.
func (c *Client) Create(ctx context.Context, req *Request) (*Envelope[*Response], error) {
	req, fp, err := c.prepare(req, false)
	if err != nil {
		return nil, err
	}

	ob := c.begin(OpCreate, req.Model, req.TraceID)
	ctx, cancel, budget := c.withDeadline(ctx, ob.start)
	defer cancel()

	env, err := c.createCached(ctx, req, fp, &ob)
	err = c.finishErr(ctx, err, budget)
	if err != nil {
		env = nil
	}
	c.end(ob, env, err)
	return env, err
}

// createCached runs fetchResponse through the cache when one is set.
func (c *Client) createCached(ctx context.Context, req *Request, fp string, ob *observation) (*Envelope[*Response], error) {
	var fetched atomic.Bool
	var attempts atomic.Int32
	fetch := func(ctx context.Context) (*Envelope[*Response], error) {
		fetched.Store(true)
		env, n, err := c.fetchResponse(ctx, req)
		attempts.Store(int32(n))
		return env, err
	}

	var env *Envelope[*Response]
	var err error
	if c.cache == nil {
		env, err = fetch(ctx)
	} else {
		env, err = c.cache.GetOrFetch(ctx, fp, fetch)
		ob.cacheHit = err == nil && !fetched.Load()
	}
	ob.attempts = int(attempts.Load())
	c.logger.Debug("create",
		"model", req.Model,
		"fingerprint", fp,
		"cache_hit", ob.cacheHit,
		"attempts", ob.attempts,
	)
	return env, err
}

func (c *Client) fetchResponse(ctx context.Context, req *Request) (*Envelope[*Response], int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, NewInvalidRequestError(err)
	}
	resp, attempts, err := c.send(ctx, &TransportRequest{
		Method:  http.MethodPost,
		Path:    pathResponses,
		Body:    body,
		TraceID: req.TraceID,
	})
	if err != nil {
		return nil, attempts, err
	}
	env, err := c.decodeResponseEnvelope(resp.StatusCode, resp.Header, resp.Body)
	return env, attempts, err
}

func (c *Client) decodeResponseEnvelope(status int, header http.Header, body []byte) (*Envelope[*Response], error) {
	r, err := DecodeResponse(body)
	if err != nil {
		derr := NewDecodingError(err)
		derr.StatusCode = status
		derr.RequestID = requestIDFromHeader(header)
		return nil, derr
	}
	if err := responseError(r); err != nil {
		err.StatusCode = status
		err.RequestID = requestIDFromHeader(header)
		return nil, err
	}
	return NewEnvelope(r, status, header, c.now()), nil
}

// responseError reports a response the API marked as failed.
func responseError(r *Response) *Error {
	if !r.Failed() {
		return nil
	}
	body := APIErrorBody{Message: "response failed"}
	if r.Error != nil {
		body = *r.Error
	}
	return NewAPIError(body)
}

// Retrieve fetches a stored response by id.
func (c *Client) Retrieve(ctx context.Context, id string) (*Envelope[*Response], error) {
	if id == "" {
		return nil, ErrResponseID
	}
	ob := c.begin(OpRetrieve, "", uuid.NewString())
	ctx, cancel, budget := c.withDeadline(ctx, ob.start)
	defer cancel()

	resp, attempts, err := c.send(ctx, &TransportRequest{
		Method:  http.MethodGet,
		Path:    pathResponses + "/" + url.PathEscape(id),
		TraceID: ob.traceID,
	})
	ob.attempts = attempts
	var env *Envelope[*Response]
	if err == nil {
		env, err = c.decodeResponseEnvelope(resp.StatusCode, resp.Header, resp.Body)
	}
	err = c.finishErr(ctx, err, budget)
	if err != nil {
		env = nil
	}
	c.end(ob, env, err)
	return env, err
}

// DeleteResult is the body returned when a stored response is deleted.
type DeleteResult struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// Delete removes a stored response.
func (c *Client) Delete(ctx context.Context, id string) (*Envelope[*DeleteResult], error) {
	if id == "" {
		return nil, ErrResponseID
	}
	ob := c.begin(OpDelete, "", uuid.NewString())
	ctx, cancel, budget := c.withDeadline(ctx, ob.start)
	defer cancel()

	env, attempts, err := sendJSON[DeleteResult](ctx, c, &TransportRequest{
		Method:  http.MethodDelete,
		Path:    pathResponses + "/" + url.PathEscape(id),
		TraceID: ob.traceID,
	})
	ob.attempts = attempts
	err = c.finishErr(ctx, err, budget)
	if err != nil {
		env = nil
	}
	c.end(ob, nil, err)
	return env, err
}

// CreateEmbeddings generates embeddings for the request input.
func (c *Client) CreateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*Envelope[*EmbeddingResponse], error) {
	if req == nil || req.Input.Len() == 0 {
		return nil, ErrNoInput
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, ErrModelRequired
	}
	wire := *req
	wire.Model = model
	body, err := json.Marshal(&wire)
	if err != nil {
		return nil, NewInvalidRequestError(err)
	}

	ob := c.begin(OpEmbeddings, model, uuid.NewString())
	ctx, cancel, budget := c.withDeadline(ctx, ob.start)
	defer cancel()

	env, attempts, err := sendJSON[EmbeddingResponse](ctx, c, &TransportRequest{
		Method:  http.MethodPost,
		Path:    pathEmbeddings,
		Body:    body,
		TraceID: ob.traceID,
	})
	ob.attempts = attempts
	err = c.finishErr(ctx, err, budget)
	if err != nil {
		env = nil
	} else {
		ob.usage = Usage{InputTokens: env.Payload.Usage.PromptTokens, TotalTokens: env.Payload.Usage.TotalTokens}
	}
	c.end(ob, nil, err)
	return env, err
}

// sendJSON performs a request and decodes a plain JSON body.
func sendJSON[T any](ctx context.Context, c *Client, treq *TransportRequest) (*Envelope[*T], int, error) {
	resp, attempts, err := c.send(ctx, treq)
	if err != nil {
		return nil, attempts, err
	}
	var payload T
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		derr := NewDecodingError(err)
		derr.StatusCode = resp.StatusCode
		derr.RequestID = requestIDFromHeader(resp.Header)
		return nil, attempts, derr
	}
	return NewEnvelope(&payload, resp.StatusCode, resp.Header, c.now()), attempts, nil
}

// send performs a non-streaming call, classifying failures and retrying
// per the retry policy. It returns the number of attempts made.
func (c *Client) send(ctx context.Context, treq *TransportRequest) (*TransportResponse, int, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.transport.Send(ctx, treq)
		if err != nil {
			err = c.classifier.ClassifyTransport(err)
		} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err = c.classifier.ClassifyStatus(resp.StatusCode, resp.Header, resp.Body)
		} else {
			return resp, attempt + 1, nil
		}

		if werr := c.backoff(ctx, attempt, err); werr != nil {
			return nil, attempt + 1, werr
		}
	}
}

// sendStream opens a streaming call. Only failures before the first event
// are retried.
func (c *Client) sendStream(ctx context.Context, treq *TransportRequest) (*StreamResponse, int, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.transport.SendStream(ctx, treq)
		if err != nil {
			err = c.classifier.ClassifyTransport(err)
		} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if resp.Events != nil {
				_ = resp.Events.Close()
			}
			err = c.classifier.ClassifyStatus(resp.StatusCode, resp.Header, resp.ErrorBody)
		} else {
			return resp, attempt + 1, nil
		}

		if werr := c.backoff(ctx, attempt, err); werr != nil {
			return nil, attempt + 1, werr
		}
	}
}

// backoff waits before the next attempt. It returns a non-nil error when
// the caller should stop: err itself when the policy gives up, or the
// context error when ctx ends during the wait.
func (c *Client) backoff(ctx context.Context, attempt int, err error) error {
	delay, ok := c.retry.NextDelay(attempt, err)
	if !ok {
		return err
	}
	c.logger.Debug("retrying request", "attempt", attempt+1, "delay", delay, "error", err)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// prepare validates and normalizes a request, returning a private copy and
// its fingerprint.
func (c *Client) prepare(req *Request, stream bool) (*Request, string, error) {
	if req == nil {
		return nil, "", ErrNoInput
	}
	r := req.Clone()
	if r.Model == "" {
		r.Model = c.defaultModel
	}
	if r.Model == "" {
		return nil, "", ErrModelRequired
	}
	if len(r.Input) == 0 {
		return nil, "", ErrNoInput
	}
	for _, m := range r.Input {
		if len(m.Content) == 0 {
			return nil, "", ErrNoInput
		}
	}
	r.Stream = stream
	if r.TraceID == "" {
		r.TraceID = uuid.NewString()
	}
	fp, err := Fingerprint(r)
	if err != nil {
		return nil, "", NewInvalidRequestError(err)
	}
	return r, fp, nil
}

// withDeadline applies the client timeout. The returned budget is the
// duration reported by a timeout error: the earlier of the client timeout
// and the caller's deadline, zero when neither applies.
func (c *Client) withDeadline(ctx context.Context, start time.Time) (context.Context, context.CancelFunc, time.Duration) {
	budget := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := dl.Sub(start); budget <= 0 || left < budget {
			budget = left
		}
	}
	if c.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		return ctx, cancel, budget
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, budget
}

// finishErr maps context expiry onto the taxonomy. An exceeded deadline
// becomes a timeout error; cancellation is returned as ctx.Err().
func (c *Client) finishErr(ctx context.Context, err error, budget time.Duration) error {
	if err == nil {
		return nil
	}
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return NewTimeoutError(budget)
	case errors.Is(ctxErr, context.Canceled):
		return ctxErr
	}
	return err
}

// observation collects what telemetry and logs report for one operation.
type observation struct {
	op       string
	model    string
	traceID  string
	start    time.Time
	attempts int
	cacheHit bool
	fellBack bool
	usage    Usage
}

func (c *Client) begin(op, model, traceID string) observation {
	ob := observation{op: op, model: model, traceID: traceID, start: time.Now()}
	c.telemetry.OnRequestStart(RequestStartEvent{
		Operation: op,
		Model:     model,
		TraceID:   traceID,
		Start:     ob.start,
	})
	return ob
}

func (c *Client) end(ob observation, env *Envelope[*Response], err error) {
	ev := RequestEndEvent{
		Operation: ob.op,
		Model:     ob.model,
		TraceID:   ob.traceID,
		Start:     ob.start,
		End:       time.Now(),
		Usage:     ob.usage,
		Attempts:  ob.attempts,
		CacheHit:  ob.cacheHit,
		FellBack:  ob.fellBack,
		Err:       err,
	}
	if env != nil {
		ev.RequestID = env.Metadata.RequestID
		if env.Payload != nil {
			ev.ResponseID = env.Payload.ID
			if env.Payload.Usage != nil {
				ev.Usage = *env.Payload.Usage
			}
		}
	}
	c.telemetry.OnRequestEnd(ev)

	if err != nil {
		c.logger.Warn("request failed",
			"operation", ev.Operation,
			"model", ev.Model,
			"trace_id", ev.TraceID,
			"duration", ev.Duration(),
			"error", err,
		)
		return
	}
	c.logger.Info("request completed",
		"operation", ev.Operation,
		"model", ev.Model,
		"response_id", ev.ResponseID,
		"request_id", ev.RequestID,
		"duration", ev.Duration(),
		"cache_hit", ev.CacheHit,
		"fell_back", ev.FellBack,
	)
}
