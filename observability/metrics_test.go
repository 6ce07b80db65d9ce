package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/petal-labs/azresponses/cache"
	"github.com/petal-labs/azresponses/core"
	"github.com/petal-labs/azresponses/tools"
)

const completedBody = `{"id":"resp_1","object":"response","status":"completed","model":"gpt-4o","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":"Hello!","annotations":[]}]}],"usage":{"input_tokens":5,"output_tokens":2,"total_tokens":7}}`

// stubTransport answers every Send with a fixed status and body.
type stubTransport struct {
	status int
	body   string
}

func (s *stubTransport) Send(ctx context.Context, req *core.TransportRequest) (*core.TransportResponse, error) {
	return &core.TransportResponse{StatusCode: s.status, Header: http.Header{}, Body: []byte(s.body)}, nil
}

func (s *stubTransport) SendStream(ctx context.Context, req *core.TransportRequest) (*core.StreamResponse, error) {
	return nil, errors.New("streaming not supported by stub")
}

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reg
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	_, reg := newTestMetrics(t)
	if _, err := NewMetrics(reg); err == nil {
		t.Error("expected error registering twice")
	}
	if _, err := NewMetrics(reg, WithNamespace("other")); err != nil {
		t.Errorf("separate namespace should register: %v", err)
	}
}

func TestOnRequestEnd(t *testing.T) {
	m, _ := newTestMetrics(t)
	start := time.Now()

	m.OnRequestStart(core.RequestStartEvent{Operation: core.OpCreate, Model: "gpt-4o", Start: start})
	if got := testutil.ToFloat64(m.inFlight.WithLabelValues(core.OpCreate)); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}

	m.OnRequestEnd(core.RequestEndEvent{
		Operation: core.OpCreate,
		Model:     "gpt-4o",
		Start:     start,
		End:       start.Add(1500 * time.Millisecond),
		Attempts:  3,
		Usage:     core.Usage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14, ReasoningTokens: 2},
	})
	m.OnRequestEnd(core.RequestEndEvent{
		Operation: core.OpStream,
		Model:     "gpt-4o",
		Start:     start,
		End:       start,
		Attempts:  1,
		FellBack:  true,
		Err:       core.NewStatusError(429, nil, ""),
	})

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"in flight", m.inFlight.WithLabelValues(core.OpCreate), 0},
		{"create ok", m.requests.WithLabelValues(core.OpCreate, "gpt-4o", OutcomeOK, "false"), 1},
		{"stream rate limited", m.requests.WithLabelValues(core.OpStream, "gpt-4o", string(core.CategoryRateLimit), "false"), 1},
		{"retries", m.retries.WithLabelValues(core.OpCreate, "gpt-4o"), 2},
		{"input tokens", m.tokens.WithLabelValues("gpt-4o", "input"), 10},
		{"output tokens", m.tokens.WithLabelValues("gpt-4o", "output"), 4},
		{"reasoning tokens", m.tokens.WithLabelValues("gpt-4o", "reasoning"), 2},
		{"fallbacks", m.fallbacks, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestCacheHitDoesNotRecountTokens(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.OnRequestEnd(core.RequestEndEvent{
		Operation: core.OpCreate, Model: "m", CacheHit: true,
		Usage: core.Usage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14},
	})
	if n := testutil.CollectAndCount(m.tokens); n != 0 {
		t.Errorf("token series = %d, want 0", n)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(core.OpCreate, "m", OutcomeOK, "true")); got != 1 {
		t.Errorf("cached requests = %v", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{context.Canceled, OutcomeCanceled},
		{core.NewStatusError(401, nil, ""), string(core.CategoryAuthentication)},
		{fmt.Errorf("wrapped: %w", core.NewServerError(503)), string(core.CategoryServer)},
		{core.NewTimeoutError(time.Second), string(core.CategoryTimeout)},
		{core.NewNetworkError(errors.New("reset")), string(core.CategoryNetwork)},
		{errors.New("mystery"), OutcomeOther},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCacheObserver(t *testing.T) {
	m, _ := newTestMetrics(t)
	c := cache.New[string](cache.Options{MaxEntries: 1, Observer: m})
	fetch := func(v string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return v, nil }
	}
	ctx := context.Background()

	_, _ = c.GetOrFetch(ctx, "a", fetch("1")) // miss
	_, _ = c.GetOrFetch(ctx, "a", fetch("1")) // hit
	_, _ = c.GetOrFetch(ctx, "b", fetch("2")) // miss, evicts a

	tests := map[string]float64{
		"hit":            1,
		"miss":           2,
		"evict_capacity": 1,
	}
	for event, want := range tests {
		if got := testutil.ToFloat64(m.cacheEvents.WithLabelValues(event)); got != want {
			t.Errorf("cache %s = %v, want %v", event, got, want)
		}
	}
}

func TestRecordToolCall(t *testing.T) {
	m, _ := newTestMetrics(t)
	r := tools.NewRegistry(tools.WithMetrics(m))
	_ = r.Register(
		tools.NewFunc("ok", "", core.Null(), func(context.Context, json.RawMessage) (any, error) { return "fine", nil }),
		tools.NewFunc("bad", "", core.Null(), func(context.Context, json.RawMessage) (any, error) { return nil, errors.New("x") }),
	)

	ctx := context.Background()
	_, _ = r.Execute(ctx, &core.FunctionCall{Name: "ok"})
	_, _ = r.Execute(ctx, &core.FunctionCall{Name: "ok"})
	_, _ = r.Execute(ctx, &core.FunctionCall{Name: "bad"})

	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("ok", OutcomeOK)); got != 2 {
		t.Errorf("ok calls = %v", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("bad", "error")); got != 1 {
		t.Errorf("bad calls = %v", got)
	}
}

func TestMetricsThroughClient(t *testing.T) {
	m, reg := newTestMetrics(t)
	rc := cache.New[*core.Envelope[*core.Response]](cache.Options{Observer: m})
	client := core.NewClient(&stubTransport{status: 200, body: completedBody},
		core.WithTelemetry(m),
		core.WithCache(rc),
	)

	req := &core.Request{Model: "gpt-4o", Input: []core.Message{core.UserMessage("Hi")}}
	for range 2 {
		if _, err := client.Create(context.Background(), req); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues(core.OpCreate, "gpt-4o", OutcomeOK, "false")); got != 1 {
		t.Errorf("uncached creates = %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(core.OpCreate, "gpt-4o", OutcomeOK, "true")); got != 1 {
		t.Errorf("cached creates = %v", got)
	}
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("gpt-4o", "input")); got != 5 {
		t.Errorf("input tokens = %v", got)
	}
	if got := testutil.ToFloat64(m.cacheEvents.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hits = %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "azresponses_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("azresponses_requests_total not gathered")
	}
}
