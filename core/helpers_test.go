package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// sliceSource replays a fixed list of event payloads.
type sliceSource struct {
	mu     sync.Mutex
	events []string
	pos    int
	err    error // returned once events are exhausted; io.EOF when nil
	closed bool
	reads  int
}

func newSliceSource(events ...string) *sliceSource {
	return &sliceSource{events: events}
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	if s.pos >= len(s.events) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	s.reads++
	return []byte(ev), nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sliceSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sliceSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// blockingSource emits its events and then blocks until ctx ends or the
// source is closed.
type blockingSource struct {
	*sliceSource
	done chan struct{}
	once sync.Once
}

func newBlockingSource(events ...string) *blockingSource {
	return &blockingSource{sliceSource: newSliceSource(events...), done: make(chan struct{})}
}

func (b *blockingSource) Next(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	if b.pos < len(b.events) {
		b.mu.Unlock()
		return b.sliceSource.Next(ctx)
	}
	b.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, io.ErrClosedPipe
	}
}

func (b *blockingSource) Close() error {
	b.once.Do(func() { close(b.done) })
	return b.sliceSource.Close()
}

// fakeTransport records requests and answers with scripted responses.
type fakeTransport struct {
	mu         sync.Mutex
	sends      []*TransportRequest
	streams    []*TransportRequest
	sendFunc   func(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
	streamFunc func(ctx context.Context, req *TransportRequest) (*StreamResponse, error)
}

func (f *fakeTransport) Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	f.mu.Lock()
	f.sends = append(f.sends, req)
	fn := f.sendFunc
	f.mu.Unlock()
	if fn == nil {
		return jsonResponse(200, completedResponse("resp_default", "Hello!")), nil
	}
	return fn(ctx, req)
}

func (f *fakeTransport) SendStream(ctx context.Context, req *TransportRequest) (*StreamResponse, error) {
	f.mu.Lock()
	f.streams = append(f.streams, req)
	fn := f.streamFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("no stream scripted")
	}
	return fn(ctx, req)
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeTransport) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeTransport) lastSend() *TransportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		return nil
	}
	return f.sends[len(f.sends)-1]
}

func jsonResponse(status int, body string) *TransportResponse {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-request-id", "req_test")
	return &TransportResponse{StatusCode: status, Header: header, Body: []byte(body)}
}

func streamOK(src EventSource) *StreamResponse {
	header := http.Header{}
	header.Set("Content-Type", "text/event-stream")
	header.Set("x-request-id", "req_stream")
	return &StreamResponse{StatusCode: 200, Header: header, Events: src}
}

func completedResponse(id, text string) string {
	return fmt.Sprintf(`{"id":%q,"object":"response","status":"completed","model":"gpt-4o","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":%q,"annotations":[]}]}],"usage":{"input_tokens":5,"output_tokens":2,"total_tokens":7}}`, id, text)
}

func functionCallResponse(id string) string {
	return fmt.Sprintf(`{"id":%q,"object":"response","status":"completed","model":"gpt-4o","output":[{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_weather","arguments":"{\"city\":\"Paris\"}","status":"completed"}]}`, id)
}

// Stream event fixtures.
func evCreated(id string) string {
	return fmt.Sprintf(`{"type":"response.created","sequence_number":0,"response":{"id":%q,"status":"in_progress","output":[]}}`, id)
}

func evTextDelta(delta string) string {
	return fmt.Sprintf(`{"type":"response.output_text.delta","item_id":"msg_1","output_index":0,"content_index":0,"delta":%q}`, delta)
}

func evCompleted(id, text string) string {
	return fmt.Sprintf(`{"type":"response.completed","response":%s}`, completedResponse(id, text))
}

const evFunctionCallAdded = `{"type":"response.output_item.added","output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_weather","arguments":"","status":"in_progress"}}`

const evArgsDelta = `{"type":"response.function_call_arguments.delta","item_id":"fc_1","output_index":0,"delta":"{\"ci"}`

// recordingHook captures telemetry events.
type recordingHook struct {
	mu     sync.Mutex
	starts []RequestStartEvent
	ends   []RequestEndEvent
}

func (h *recordingHook) OnRequestStart(e RequestStartEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, e)
}

func (h *recordingHook) OnRequestEnd(e RequestEndEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, e)
}

func (h *recordingHook) endEvents() []RequestEndEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]RequestEndEvent(nil), h.ends...)
}
