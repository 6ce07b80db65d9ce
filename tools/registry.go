package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/petal-labs/azresponses/core"
)

var (
	// ErrDuplicateTool is returned when attempting to register a tool with a
	// name that is already registered.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolNotFound is returned when the model calls an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
)

// Registry manages a collection of tools indexed by name.
// Registry is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	middleware []Middleware
}

// NewRegistry creates a new empty tool registry. The middleware wraps every
// tool registered afterwards, first one outermost.
func NewRegistry(middleware ...Middleware) *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		middleware: middleware,
	}
}

// Register adds tools to the registry.
// Returns ErrDuplicateTool if a tool with the same name is already registered.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if t == nil {
			return errors.New("tool cannot be nil")
		}
		name := t.Name()
		if name == "" {
			return errors.New("tool name cannot be empty")
		}
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		r.tools[name] = ApplyMiddleware(t, r.middleware...)
	}
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b Tool) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return result
}

// Definitions returns the request declarations of every registered tool in
// name order, ready for Request.Tools.
func (r *Registry) Definitions() []core.ToolDefinition {
	tools := r.List()
	defs := make([]core.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = Definition(t)
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the tool named by call.
func (r *Registry) Execute(ctx context.Context, call *core.FunctionCall) (any, error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, call.Name)
	}
	args, err := RawArguments(call)
	if err != nil {
		return nil, err
	}
	ctx = withCall(ctx, tool, call)
	return tool.Call(ctx, args)
}

// FormatResult renders a tool result as function_call_output text.
func FormatResult(v any) (string, error) {
	switch r := v.(type) {
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case json.RawMessage:
		return string(r), nil
	case nil:
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("tools: encode result: %w", err)
	}
	return string(b), nil
}
