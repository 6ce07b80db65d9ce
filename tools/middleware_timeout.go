package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrToolTimeout is returned when a tool exceeds its WithTimeout budget.
var ErrToolTimeout = errors.New("tool execution timed out")

// WithTimeout creates middleware that enforces a timeout on tool execution.
// The tool's context is cancelled at the deadline; a tool that ignores it
// is abandoned and its result discarded.
func WithTimeout(d time.Duration) Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				value any
				err   error
			}
			ch := make(chan result, 1)

			go func() {
				v, err := next(ctx, args)
				ch <- result{v, err}
			}()

			select {
			case r := <-ch:
				return r.value, r.err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, fmt.Errorf("%w after %v", ErrToolTimeout, d)
				}
				return nil, ctx.Err()
			}
		}
	}
}
