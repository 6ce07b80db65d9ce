package tools

import (
	"encoding/json"
	"fmt"

	"github.com/petal-labs/azresponses/core"
)

// ParseArgs decodes a function call's arguments into T.
//
//	args, err := tools.ParseArgs[WeatherArgs](call)
//	if err != nil {
//	    return nil, err
//	}
func ParseArgs[T any](call *core.FunctionCall) (*T, error) {
	raw, err := RawArguments(call)
	if err != nil {
		return nil, err
	}
	return ParseRaw[T](raw)
}

// ParseRaw decodes raw JSON arguments into T.
func ParseRaw[T any](raw json.RawMessage) (*T, error) {
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("tools: decode arguments: %w", err)
	}
	return &result, nil
}

// RawArguments returns the call's arguments as a JSON object. Missing
// arguments encode as {}.
func RawArguments(call *core.FunctionCall) (json.RawMessage, error) {
	args := call.Arguments
	if args.IsNull() {
		return json.RawMessage("{}"), nil
	}
	return args.MarshalJSON()
}
