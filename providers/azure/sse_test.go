package azure

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func readAll(t *testing.T, r *eventReader) []string {
	t.Helper()
	var out []string
	for {
		payload, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, string(payload))
	}
}

func TestEventReaderFraming(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   []string
	}{
		{
			name:   "single events",
			stream: "event: response.created\ndata: {\"a\":1}\n\nevent: response.completed\ndata: {\"b\":2}\n\n",
			want:   []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:   "multi-line data",
			stream: "data: {\"a\":\ndata: 1}\n\n",
			want:   []string{"{\"a\":\n1}"},
		},
		{
			name:   "comments and keepalives",
			stream: ": ping\n\n: another\ndata: {\"x\":true}\n\n",
			want:   []string{`{"x":true}`},
		},
		{
			name:   "no space after colon",
			stream: "data:{\"x\":1}\n\n",
			want:   []string{`{"x":1}`},
		},
		{
			name:   "crlf line endings",
			stream: "data: {\"x\":1}\r\n\r\ndata: {\"y\":2}\r\n\r\n",
			want:   []string{`{"x":1}`, `{"y":2}`},
		},
		{
			name:   "id and retry ignored",
			stream: "id: 7\nretry: 1000\ndata: {\"x\":1}\n\n",
			want:   []string{`{"x":1}`},
		},
		{
			name:   "done marker stops reading",
			stream: "data: {\"x\":1}\n\ndata: [DONE]\n\ndata: {\"late\":1}\n\n",
			want:   []string{`{"x":1}`},
		},
		{
			name:   "trailing event without blank line",
			stream: "data: {\"x\":1}\n\ndata: {\"y\":2}",
			want:   []string{`{"x":1}`, `{"y":2}`},
		},
		{
			name:   "empty stream",
			stream: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEventReader(io.NopCloser(strings.NewReader(tt.stream)), DefaultMaxEventSize)
			got := readAll(t, r)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			// Stays at EOF.
			if _, err := r.Next(context.Background()); !errors.Is(err, io.EOF) {
				t.Errorf("Next() after end = %v", err)
			}
		})
	}
}

func TestEventReaderOversizedEvent(t *testing.T) {
	stream := "data: " + strings.Repeat("x", 200) + "\n\n"
	r := newEventReader(io.NopCloser(strings.NewReader(stream)), 64)
	_, err := r.Next(context.Background())
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("Next() error = %v, want bufio.ErrTooLong", err)
	}
}

func TestEventReaderContextCancelled(t *testing.T) {
	r := newEventReader(io.NopCloser(strings.NewReader("data: {}\n\n")), DefaultMaxEventSize)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v", err)
	}
}

func TestEventReaderCloseOnce(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader("")}
	r := newEventReader(body, DefaultMaxEventSize)
	r.Close()
	r.Close()
	if body.closed != 1 {
		t.Errorf("body closed %d times", body.closed)
	}
}
