package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// ResponseStream represents a streaming response.
//
// Channel Rules:
//   - Ch, Err and Final are closed when the stream ends
//   - Ch emits chunks in server order; at most one chunk has IsComplete set
//     and it is the last one
//   - Err emits at most one error
//   - Final emits exactly once on success: the terminal response, or the
//     non-streaming response obtained after a function-call fallback
type ResponseStream struct {
	// Ch emits decoded events in order. Closed when the stream ends.
	Ch <-chan Chunk[*StreamEvent]

	// Err emits at most one error.
	Err <-chan error

	// Final sent exactly once after successful completion.
	Final <-chan *Envelope[*Response]

	cancel   context.CancelFunc
	fellBack atomic.Bool
}

// Cancel aborts the stream and releases the underlying connection. Err then
// reports context.Canceled.
func (s *ResponseStream) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// FellBack reports whether function-call content was detected and the
// stream was replaced by a non-streaming request. The value is final once
// Final or Err has delivered.
func (s *ResponseStream) FellBack() bool {
	return s.fellBack.Load()
}

// Stream sends a streaming request. Chunks arrive on the returned stream's
// Ch. When a chunk carries function call content the stream is abandoned
// and the identical request is re-issued without streaming; its result is
// delivered on Final.
func (c *Client) Stream(ctx context.Context, req *Request) (*ResponseStream, error) {
	req, fp, err := c.prepare(req, true)
	if err != nil {
		return nil, err
	}

	ob := c.begin(OpStream, req.Model, req.TraceID)

	if c.cache != nil {
		if env, ok := c.cache.Get(fp); ok {
			ob.cacheHit = true
			c.end(ob, env, nil)
			return cachedStream(env), nil
		}
	}

	ctx, cancel, budget := c.withDeadline(ctx, ob.start)

	body, err := json.Marshal(req)
	if err != nil {
		cancel()
		err = NewInvalidRequestError(err)
		c.end(ob, nil, err)
		return nil, err
	}
	sresp, attempts, err := c.sendStream(ctx, &TransportRequest{
		Method:  http.MethodPost,
		Path:    pathResponses,
		Body:    body,
		TraceID: req.TraceID,
	})
	ob.attempts = attempts
	if err != nil {
		err = c.finishErr(ctx, err, budget)
		cancel()
		c.end(ob, nil, err)
		return nil, err
	}

	chunkCh := make(chan Chunk[*StreamEvent], 64)
	errCh := make(chan error, 1)
	finalCh := make(chan *Envelope[*Response], 1)
	s := &ResponseStream{
		Ch:     chunkCh,
		Err:    errCh,
		Final:  finalCh,
		cancel: cancel,
	}

	p := &pump{
		client:  c,
		req:     req,
		fp:      fp,
		resp:    sresp,
		stream:  s,
		ob:      ob,
		budget:  budget,
		chunkCh: chunkCh,
		errCh:   errCh,
		finalCh: finalCh,
	}
	go p.run(ctx, cancel)
	return s, nil
}

// cachedStream replays a cached envelope as a single terminal chunk.
func cachedStream(env *Envelope[*Response]) *ResponseStream {
	chunkCh := make(chan Chunk[*StreamEvent], 1)
	errCh := make(chan error)
	finalCh := make(chan *Envelope[*Response], 1)

	chunkCh <- Chunk[*StreamEvent]{
		Data:           &StreamEvent{Type: EventResponseCompleted, Response: env.Payload},
		IsComplete:     true,
		SequenceNumber: 0,
	}
	finalCh <- env
	close(chunkCh)
	close(errCh)
	close(finalCh)

	return &ResponseStream{Ch: chunkCh, Err: errCh, Final: finalCh}
}

// pump moves decoded chunks from the transport to the stream channels.
type pump struct {
	client  *Client
	req     *Request
	fp      string
	resp    *StreamResponse
	stream  *ResponseStream
	ob      observation
	budget  time.Duration
	chunkCh chan<- Chunk[*StreamEvent]
	errCh   chan<- error
	finalCh chan<- *Envelope[*Response]
}

func (p *pump) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	defer close(p.chunkCh)
	defer close(p.errCh)
	defer close(p.finalCh)

	c := p.client
	dec := NewStreamDecoder(p.resp.Events, c.decoderOpts...)

	for {
		chunk, err := dec.Next(ctx)
		if err != nil {
			p.fail(c.finishErr(ctx, err, p.budget))
			return
		}

		select {
		case p.chunkCh <- chunk:
		case <-ctx.Done():
			_ = dec.Abort()
			p.fail(c.finishErr(ctx, ctx.Err(), p.budget))
			return
		}

		if dec.FunctionCallDetected() {
			_ = dec.Abort()
			p.fallback(ctx, chunk.SequenceNumber)
			return
		}

		if chunk.IsComplete {
			p.complete(chunk.Data.Response)
			return
		}
	}
}

// fallback re-issues the identical request without streaming. The partial
// streamed output is not used to build the result.
func (p *pump) fallback(ctx context.Context, seq int) {
	c := p.client
	p.stream.fellBack.Store(true)
	p.ob.fellBack = true

	req := p.req.Clone()
	req.Stream = false
	c.logger.Debug("function call detected, falling back to non-streaming request",
		"model", req.Model,
		"trace_id", req.TraceID,
		"sequence_number", seq,
	)

	env, err := c.createCached(ctx, req, p.fp, &p.ob)
	if err = c.finishErr(ctx, err, p.budget); err != nil {
		p.fail(err)
		return
	}
	p.finalCh <- env
	c.end(p.ob, env, nil)
}

func (p *pump) complete(r *Response) {
	c := p.client
	if r == nil {
		p.fail(NewDecodingError(errNoTerminalResponse))
		return
	}
	if err := responseError(r); err != nil {
		err.RequestID = requestIDFromHeader(p.resp.Header)
		p.fail(err)
		return
	}
	env := NewEnvelope(r, p.resp.StatusCode, p.resp.Header, c.now())
	if c.cache != nil {
		c.cache.Put(p.fp, env)
	}
	p.finalCh <- env
	c.end(p.ob, env, nil)
}

func (p *pump) fail(err error) {
	p.errCh <- err
	p.client.end(p.ob, nil, err)
}

var (
	errNoTerminalResponse = errors.New("terminal event carried no response")
	errNilStream          = errors.New("nil stream")
)

// DrainStream reads the stream to the end and returns the final envelope.
// Blocks until the stream completes or ctx is cancelled.
func DrainStream(ctx context.Context, s *ResponseStream) (*Envelope[*Response], error) {
	if s == nil {
		return nil, errNilStream
	}

	for done := false; !done; {
		select {
		case <-ctx.Done():
			s.Cancel()
			return nil, ctx.Err()
		case _, ok := <-s.Ch:
			done = !ok
		}
	}

	if err, ok := <-s.Err; ok && err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.Cancel()
		return nil, ctx.Err()
	case env, ok := <-s.Final:
		if !ok || env == nil {
			return nil, NewNetworkError(errNoTerminalResponse)
		}
		return env, nil
	}
}

// CollectText drains the stream and returns the concatenated text deltas
// that were streamed, along with the final envelope.
func CollectText(ctx context.Context, s *ResponseStream, onDelta func(string)) (string, *Envelope[*Response], error) {
	var sb strings.Builder
	for done := false; !done; {
		select {
		case <-ctx.Done():
			s.Cancel()
			return sb.String(), nil, ctx.Err()
		case chunk, ok := <-s.Ch:
			if !ok {
				done = true
				break
			}
			if d := chunk.Data.TextDelta(); d != "" {
				sb.WriteString(d)
				if onDelta != nil {
					onDelta(d)
				}
			}
		}
	}
	env, err := DrainStream(ctx, s)
	return sb.String(), env, err
}
