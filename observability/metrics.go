// Package observability exports client, cache and tool activity to
// Prometheus and OpenTelemetry.
//
//	m, err := observability.NewMetrics(prometheus.DefaultRegisterer)
//	if err != nil {
//	    return err
//	}
//	rc := cache.New[*core.Envelope[*core.Response]](cache.Options{Observer: m})
//	client := core.NewClient(p,
//	    core.WithCache(rc),
//	    core.WithTelemetry(core.MultiTelemetryHook{m, observability.NewTracer(nil)}),
//	)
package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petal-labs/azresponses/cache"
	"github.com/petal-labs/azresponses/core"
	"github.com/petal-labs/azresponses/tools"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "azresponses"

// LLMBuckets defines histogram buckets suited for model latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Outcome label values besides error categories.
const (
	OutcomeOK       = "ok"
	OutcomeCanceled = "canceled"
	OutcomeOther    = "other"
)

// Metrics records client requests, cache activity and tool calls. It
// implements core.TelemetryHook, cache.Observer and tools.MetricsCollector.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inFlight     *prometheus.GaugeVec
	retries      *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	fallbacks    prometheus.Counter
	cacheEvents  *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	namespace   string
	constLabels prometheus.Labels
}

// WithNamespace replaces DefaultNamespace.
func WithNamespace(ns string) MetricsOption {
	return func(c *metricsConfig) {
		c.namespace = ns
	}
}

// WithConstLabels attaches fixed labels, such as the deployment, to every
// metric.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *metricsConfig) {
		c.constLabels = labels
	}
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, opts ...MetricsOption) (*Metrics, error) {
	cfg := metricsConfig{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&cfg)
	}
	ns, cl := cfg.namespace, cfg.constLabels

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "requests_total", ConstLabels: cl,
			Help: "Client operations by outcome (ok, canceled or error category).",
		}, []string{"operation", "model", "outcome", "cache"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "request_duration_seconds", ConstLabels: cl,
			Help:    "Client operation duration, including retries.",
			Buckets: LLMBuckets,
		}, []string{"operation", "model"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "requests_in_flight", ConstLabels: cl,
			Help: "Client operations in progress.",
		}, []string{"operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "retries_total", ConstLabels: cl,
			Help: "Transport attempts beyond the first.",
		}, []string{"operation", "model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "tokens_total", ConstLabels: cl,
			Help: "Token usage reported by the service.",
		}, []string{"model", "direction"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "stream_fallbacks_total", ConstLabels: cl,
			Help: "Streams replaced by a non-streaming request after a function call.",
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_events_total", ConstLabels: cl,
			Help: "Response cache hits, misses, shared fetches and evictions.",
		}, []string{"event"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "tool_calls_total", ConstLabels: cl,
			Help: "Tool executions by name and status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "tool_duration_seconds", ConstLabels: cl,
			Help:    "Tool execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.duration, m.inFlight, m.retries, m.tokens,
		m.fallbacks, m.cacheEvents, m.toolCalls, m.toolDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// OnRequestStart implements core.TelemetryHook.
func (m *Metrics) OnRequestStart(e core.RequestStartEvent) {
	m.inFlight.WithLabelValues(e.Operation).Inc()
}

// OnRequestEnd implements core.TelemetryHook.
func (m *Metrics) OnRequestEnd(e core.RequestEndEvent) {
	m.inFlight.WithLabelValues(e.Operation).Dec()
	m.requests.WithLabelValues(e.Operation, e.Model, Outcome(e.Err), strconv.FormatBool(e.CacheHit)).Inc()
	m.duration.WithLabelValues(e.Operation, e.Model).Observe(e.Duration().Seconds())

	if e.Attempts > 1 {
		m.retries.WithLabelValues(e.Operation, e.Model).Add(float64(e.Attempts - 1))
	}
	if e.FellBack {
		m.fallbacks.Inc()
	}
	if e.CacheHit {
		// Cached usage was already counted when it was fetched.
		return
	}
	if e.Usage.InputTokens > 0 {
		m.tokens.WithLabelValues(e.Model, "input").Add(float64(e.Usage.InputTokens))
	}
	if e.Usage.OutputTokens > 0 {
		m.tokens.WithLabelValues(e.Model, "output").Add(float64(e.Usage.OutputTokens))
	}
	if e.Usage.ReasoningTokens > 0 {
		m.tokens.WithLabelValues(e.Model, "reasoning").Add(float64(e.Usage.ReasoningTokens))
	}
}

// Hit implements cache.Observer.
func (m *Metrics) Hit(string) { m.cacheEvents.WithLabelValues("hit").Inc() }

// Miss implements cache.Observer.
func (m *Metrics) Miss(string) { m.cacheEvents.WithLabelValues("miss").Inc() }

// Shared implements cache.Observer.
func (m *Metrics) Shared(string) { m.cacheEvents.WithLabelValues("shared").Inc() }

// Evict implements cache.Observer.
func (m *Metrics) Evict(_ string, reason cache.EvictReason) {
	m.cacheEvents.WithLabelValues("evict_" + string(reason)).Inc()
}

// RecordToolCall implements tools.MetricsCollector.
func (m *Metrics) RecordToolCall(tool string, d time.Duration, err error) {
	status := OutcomeOK
	if err != nil {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Outcome maps an operation error to a low-cardinality label value: "ok",
// "canceled", the error's category, or "other".
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var e *core.Error
	if errors.As(err, &e) {
		return string(e.Category())
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}
	return OutcomeOther
}

var (
	_ core.TelemetryHook     = (*Metrics)(nil)
	_ cache.Observer         = (*Metrics)(nil)
	_ tools.MetricsCollector = (*Metrics)(nil)
)
