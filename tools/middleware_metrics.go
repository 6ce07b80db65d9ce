package tools

import (
	"context"
	"encoding/json"
	"time"
)

// MetricsCollector receives tool execution metrics.
// observability.Metrics implements it.
type MetricsCollector interface {
	RecordToolCall(tool string, duration time.Duration, err error)
}

// WithMetrics creates middleware that records tool execution metrics.
func WithMetrics(collector MetricsCollector) Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			start := time.Now()
			result, err := next(ctx, args)
			collector.RecordToolCall(toolName(ctx), time.Since(start), err)
			return result, err
		}
	}
}
