// Package tools runs function tools on behalf of the model: a registry of
// callable tools, middleware around each call, and an executor that turns
// function_call output items into function_call_output input items and
// chains the next turn through previous_response_id.
package tools

import (
	"context"
	"encoding/json"

	"github.com/petal-labs/azresponses/core"
)

// Tool defines the interface for model-callable functions.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This is provided to the model to help it decide when to use the tool.
	Description() string

	// Parameters returns the JSON Schema object describing the arguments.
	// Null means the tool takes no arguments.
	Parameters() core.Value

	// Call executes the tool with the raw JSON arguments from the model.
	// A string result is sent back verbatim; anything else is JSON-encoded.
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Definition returns the request-side declaration of t.
func Definition(t Tool) core.ToolDefinition {
	params := t.Parameters()
	if params.IsNull() {
		params = core.Object(map[string]core.Value{
			"type":       core.String("object"),
			"properties": core.Object(nil),
		})
	}
	return core.FunctionTool(t.Name(), t.Description(), params)
}

// funcTool adapts a plain function to Tool.
type funcTool struct {
	name        string
	description string
	parameters  core.Value
	fn          ToolCallFunc
}

// NewFunc creates a tool from a function that receives raw arguments.
func NewFunc(name, description string, parameters core.Value, fn ToolCallFunc) Tool {
	return &funcTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewTyped creates a tool whose arguments are decoded into T before fn runs.
//
//	type WeatherArgs struct {
//	    City string `json:"city"`
//	}
//
//	weather := tools.NewTyped("get_weather", "Current weather", schema,
//	    func(ctx context.Context, args WeatherArgs) (any, error) {
//	        return lookup(ctx, args.City)
//	    })
func NewTyped[T any](name, description string, parameters core.Value, fn func(ctx context.Context, args T) (any, error)) Tool {
	return NewFunc(name, description, parameters, func(ctx context.Context, raw json.RawMessage) (any, error) {
		args, err := ParseRaw[T](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, *args)
	})
}

func (t *funcTool) Name() string           { return t.name }
func (t *funcTool) Description() string    { return t.description }
func (t *funcTool) Parameters() core.Value { return t.parameters }

func (t *funcTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	return t.fn(ctx, args)
}
