package azure

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"
)

var doneMarker = []byte("[DONE]")

// eventReader splits a text/event-stream body into event payloads. It
// implements core.EventSource.
//
// Multi-line data fields are joined with "\n". Comment lines, event names,
// ids and retry hints are ignored since every payload carries its own type.
// A "[DONE]" payload ends the stream.
type eventReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	data    bytes.Buffer
	done    bool

	closeOnce sync.Once
	closeErr  error
}

func newEventReader(body io.ReadCloser, maxEventSize int) *eventReader {
	scanner := bufio.NewScanner(body)
	// The scanner's limit is the larger of cap(buf) and max.
	scanner.Buffer(make([]byte, 0, min(64*1024, maxEventSize)), maxEventSize)
	return &eventReader{body: body, scanner: scanner}
}

// Next returns the next event payload, or io.EOF at the end of the stream.
func (r *eventReader) Next(ctx context.Context) ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			// Dispatch a final event that was not followed by a blank line.
			if payload, ok := r.dispatch(); ok {
				return payload, nil
			}
			r.done = true
			return nil, io.EOF
		}

		line := r.scanner.Bytes()
		if len(line) == 0 {
			if payload, ok := r.dispatch(); ok {
				return payload, nil
			}
			if r.done {
				return nil, io.EOF
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		if string(field) != "data" {
			continue
		}
		if r.data.Len() > 0 {
			r.data.WriteByte('\n')
		}
		r.data.Write(value)
	}
}

func (r *eventReader) dispatch() ([]byte, bool) {
	if r.data.Len() == 0 {
		return nil, false
	}
	payload := bytes.Clone(r.data.Bytes())
	r.data.Reset()
	if bytes.Equal(bytes.TrimSpace(payload), doneMarker) {
		r.done = true
		return nil, false
	}
	return payload, true
}

// Close releases the response body. It is safe to call more than once.
func (r *eventReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}
