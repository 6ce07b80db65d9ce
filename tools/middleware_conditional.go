package tools

import (
	"context"
	"encoding/json"
)

// ForTools applies middleware only to tools with the specified names.
func ForTools(toolNames []string, middleware Middleware) Middleware {
	return selectTools(toolNames, middleware, true)
}

// ExceptTools applies middleware to all tools except those with the specified names.
func ExceptTools(toolNames []string, middleware Middleware) Middleware {
	return selectTools(toolNames, middleware, false)
}

func selectTools(toolNames []string, middleware Middleware, include bool) Middleware {
	nameSet := make(map[string]struct{}, len(toolNames))
	for _, name := range toolNames {
		nameSet[name] = struct{}{}
	}

	return func(next ToolCallFunc) ToolCallFunc {
		wrapped := middleware(next)
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			_, listed := nameSet[toolName(ctx)]
			if listed == include {
				return wrapped(ctx, args)
			}
			return next(ctx, args)
		}
	}
}
