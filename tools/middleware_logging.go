package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// WithLogging creates middleware that logs each call's outcome and duration.
// Arguments and results are never logged.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			attrs := []any{"tool", toolName(ctx)}
			if tc := ToolContextFromContext(ctx); tc != nil {
				attrs = append(attrs, "call_id", tc.CallID, "iteration", tc.Iteration)
			}

			start := time.Now()
			result, err := next(ctx, args)
			attrs = append(attrs, "duration", time.Since(start))

			if err != nil {
				logger.WarnContext(ctx, "tool call failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "tool call", attrs...)
			}
			return result, err
		}
	}
}
