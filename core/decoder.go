package core

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Chunk is one incremental unit of a streaming response. SequenceNumber is
// the decoder's 0-based running counter and strictly increases within a
// stream. IsComplete is set on the final chunk only.
type Chunk[T any] struct {
	Data           T
	IsComplete     bool
	SequenceNumber int
}

// DecoderState is the lifecycle state of a StreamDecoder.
type DecoderState int

const (
	StateIdle DecoderState = iota
	StateReceiving
	StateCompleted
	StateAborted
	StateFailed
)

// String returns the state name.
func (s DecoderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrStreamAborted is returned by Next after the stream was aborted.
var ErrStreamAborted = errors.New("stream aborted")

// DecoderOption configures a StreamDecoder.
type DecoderOption func(*StreamDecoder)

// WithPartialTolerance makes the decoder skip events that fail to decode
// instead of failing the stream.
func WithPartialTolerance() DecoderOption {
	return func(d *StreamDecoder) {
		d.tolerant = true
	}
}

// WithFunctionCallHandler registers a callback invoked, from within Next,
// for every chunk that carries function call content.
func WithFunctionCallHandler(fn func(Chunk[*StreamEvent])) DecoderOption {
	return func(d *StreamDecoder) {
		d.onFunctionCall = fn
	}
}

// StreamDecoder turns an EventSource into an ordered sequence of chunks.
//
// Next must be called from a single goroutine. Abort may be called from
// any goroutine; a blocked Next is released when the source is closed or
// its context is cancelled.
type StreamDecoder struct {
	src            EventSource
	tolerant       bool
	onFunctionCall func(Chunk[*StreamEvent])

	mu        sync.Mutex
	state     DecoderState
	seq       int
	skipped   int
	detected  bool
	err       error
	final     *Response
	closeOnce sync.Once
	closeErr  error
}

// NewStreamDecoder creates a decoder reading from src.
func NewStreamDecoder(src EventSource, opts ...DecoderOption) *StreamDecoder {
	d := &StreamDecoder{src: src}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next chunk. After the terminal chunk it returns io.EOF;
// after a failure it returns the failure; after Abort it returns
// ErrStreamAborted. A cancelled ctx aborts the stream and returns
// ctx.Err().
func (d *StreamDecoder) Next(ctx context.Context) (Chunk[*StreamEvent], error) {
	if err := d.finished(); err != nil {
		return Chunk[*StreamEvent]{}, err
	}
	if err := ctx.Err(); err != nil {
		d.abort()
		return Chunk[*StreamEvent]{}, err
	}
	d.startReceiving()

	for {
		data, err := d.src.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				d.abort()
				return Chunk[*StreamEvent]{}, ctxErr
			}
			if d.State() == StateAborted {
				return Chunk[*StreamEvent]{}, ErrStreamAborted
			}
			if errors.Is(err, io.EOF) {
				return Chunk[*StreamEvent]{}, d.fail(NewNetworkError(io.ErrUnexpectedEOF))
			}
			var typed *Error
			if !errors.As(err, &typed) {
				err = NewNetworkError(err)
			}
			return Chunk[*StreamEvent]{}, d.fail(err)
		}

		ev, err := DecodeStreamEvent(data)
		if err != nil {
			if d.tolerant {
				d.mu.Lock()
				d.skipped++
				d.mu.Unlock()
				continue
			}
			return Chunk[*StreamEvent]{}, d.fail(NewDecodingError(err))
		}

		if ev.Type == EventError {
			return Chunk[*StreamEvent]{}, d.fail(NewAPIError(*ev.Error))
		}

		d.mu.Lock()
		chunk := Chunk[*StreamEvent]{
			Data:           ev,
			IsComplete:     ev.IsTerminal(),
			SequenceNumber: d.seq,
		}
		d.seq++
		fc := ev.ContainsFunctionCall()
		if fc {
			d.detected = true
		}
		if chunk.IsComplete {
			d.state = StateCompleted
			d.final = ev.Response
		}
		d.mu.Unlock()

		if chunk.IsComplete {
			d.close()
		}
		if fc && d.onFunctionCall != nil {
			d.onFunctionCall(chunk)
		}
		return chunk, nil
	}
}

// Abort stops the stream and releases the source. It is a no-op once the
// stream has completed or failed.
func (d *StreamDecoder) Abort() error {
	d.abort()
	return d.closeErr
}

// State returns the current state.
func (d *StreamDecoder) State() DecoderState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure that moved the decoder to StateFailed.
func (d *StreamDecoder) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// FunctionCallDetected reports whether any emitted chunk carried function
// call content.
func (d *StreamDecoder) FunctionCallDetected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detected
}

// Skipped returns how many malformed events were dropped under partial
// tolerance.
func (d *StreamDecoder) Skipped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.skipped
}

// Emitted returns how many chunks have been produced.
func (d *StreamDecoder) Emitted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Final returns the response carried by the terminal event, or nil before
// completion.
func (d *StreamDecoder) Final() *Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.final
}

func (d *StreamDecoder) finished() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateCompleted:
		return io.EOF
	case StateAborted:
		return ErrStreamAborted
	case StateFailed:
		return d.err
	}
	return nil
}

func (d *StreamDecoder) startReceiving() {
	d.mu.Lock()
	if d.state == StateIdle {
		d.state = StateReceiving
	}
	d.mu.Unlock()
}

func (d *StreamDecoder) fail(err error) error {
	d.mu.Lock()
	d.state = StateFailed
	d.err = err
	d.mu.Unlock()
	d.close()
	return err
}

func (d *StreamDecoder) abort() {
	d.mu.Lock()
	switch d.state {
	case StateCompleted, StateFailed:
		d.mu.Unlock()
		return
	}
	d.state = StateAborted
	d.mu.Unlock()
	d.close()
}

func (d *StreamDecoder) close() {
	d.closeOnce.Do(func() {
		d.closeErr = d.src.Close()
	})
}
