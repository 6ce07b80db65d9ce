package tools

import (
	"context"
	"encoding/json"

	"github.com/petal-labs/azresponses/core"
)

// ToolCallFunc is the function signature for tool execution.
// Middleware wraps this function to add behavior.
type ToolCallFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Middleware wraps a ToolCallFunc to add behavior before and/or after execution.
type Middleware func(next ToolCallFunc) ToolCallFunc

// ToolContext describes the call in progress to middleware.
// It's stored in the context and accessible via ToolContextFromContext.
type ToolContext struct {
	// ToolName is the name of the tool being called.
	ToolName string

	// CallID is the model's call_id for this invocation, when known.
	CallID string

	// Iteration is the executor loop iteration, starting at 1.
	Iteration int

	// Parameters is the tool's argument schema.
	Parameters core.Value

	// Metadata allows middleware to share data with each other.
	Metadata map[string]any
}

type toolContextKey struct{}

// ContextWithToolContext adds ToolContext to a context.
func ContextWithToolContext(ctx context.Context, tc *ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey{}, tc)
}

// ToolContextFromContext retrieves ToolContext from a context.
// Returns nil if not present.
func ToolContextFromContext(ctx context.Context) *ToolContext {
	tc, _ := ctx.Value(toolContextKey{}).(*ToolContext)
	return tc
}

// toolName returns the name recorded in ctx, or "unknown".
func toolName(ctx context.Context) string {
	if tc := ToolContextFromContext(ctx); tc != nil && tc.ToolName != "" {
		return tc.ToolName
	}
	return "unknown"
}

// withCall installs a fresh ToolContext for one call, keeping the caller's
// iteration.
func withCall(ctx context.Context, tool Tool, call *core.FunctionCall) context.Context {
	tc := &ToolContext{
		ToolName:   tool.Name(),
		CallID:     call.CallID,
		Parameters: tool.Parameters(),
		Metadata:   make(map[string]any),
	}
	if parent := ToolContextFromContext(ctx); parent != nil {
		tc.Iteration = parent.Iteration
	}
	return ContextWithToolContext(ctx, tc)
}

// Chain combines multiple middleware into a single middleware.
// Middleware are executed in the order provided (first middleware is outermost).
func Chain(middlewares ...Middleware) Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// ApplyMiddleware wraps a tool with middleware.
func ApplyMiddleware(tool Tool, middlewares ...Middleware) Tool {
	if len(middlewares) == 0 {
		return tool
	}
	return &wrappedTool{
		tool:    tool,
		wrapped: Chain(middlewares...)(tool.Call),
	}
}

type wrappedTool struct {
	tool    Tool
	wrapped ToolCallFunc
}

func (w *wrappedTool) Name() string           { return w.tool.Name() }
func (w *wrappedTool) Description() string    { return w.tool.Description() }
func (w *wrappedTool) Parameters() core.Value { return w.tool.Parameters() }

func (w *wrappedTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	tc := ToolContextFromContext(ctx)
	if tc == nil {
		tc = &ToolContext{
			ToolName:   w.tool.Name(),
			Parameters: w.tool.Parameters(),
			Metadata:   make(map[string]any),
		}
		ctx = ContextWithToolContext(ctx, tc)
	} else if tc.ToolName == "" {
		tc.ToolName = w.tool.Name()
	}
	return w.wrapped(ctx, args)
}
