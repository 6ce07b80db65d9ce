package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/petal-labs/azresponses/core"
)

// ErrInvalidArguments is returned by the validation middleware.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// WithBasicValidation creates middleware that rejects arguments that are
// not a JSON object.
func WithBasicValidation() Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			if !gjson.ValidBytes(args) || !gjson.ParseBytes(args).IsObject() {
				return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidArguments)
			}
			return next(ctx, args)
		}
	}
}

// WithArgumentValidation creates middleware that checks arguments against
// the top level of the tool's parameter schema: every "required" property
// must be present and declared primitive types must match. Nested schemas
// are not inspected.
func WithArgumentValidation() Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			if err := checkArguments(ToolContextFromContext(ctx), args); err != nil {
				return nil, err
			}
			return next(ctx, args)
		}
	}
}

func checkArguments(tc *ToolContext, args json.RawMessage) error {
	if !gjson.ValidBytes(args) {
		return fmt.Errorf("%w: malformed JSON", ErrInvalidArguments)
	}
	parsed := gjson.ParseBytes(args)
	if !parsed.IsObject() {
		return fmt.Errorf("%w: not a JSON object", ErrInvalidArguments)
	}
	if tc == nil || tc.Parameters.IsNull() {
		return nil
	}

	present := make(map[string]gjson.Result)
	parsed.ForEach(func(key, value gjson.Result) bool {
		present[key.String()] = value
		return true
	})

	if required, ok := tc.Parameters.Get("required"); ok {
		items, _ := required.AsArray()
		for _, item := range items {
			name, _ := item.AsString()
			if _, ok := present[name]; !ok {
				return fmt.Errorf("%w: missing required property %q", ErrInvalidArguments, name)
			}
		}
	}

	props, _ := tc.Parameters.Get("properties")
	fields, _ := props.AsObject()
	for name, schema := range fields {
		value, ok := present[name]
		if !ok {
			continue
		}
		typeName, _ := schemaType(schema)
		if typeName != "" && !matchesType(value, typeName) {
			return fmt.Errorf("%w: property %q should be %s", ErrInvalidArguments, name, typeName)
		}
	}
	return nil
}

func schemaType(schema core.Value) (string, bool) {
	t, ok := schema.Get("type")
	if !ok {
		return "", false
	}
	return t.AsString()
}

func matchesType(v gjson.Result, typeName string) bool {
	switch typeName {
	case "string":
		return v.Type == gjson.String
	case "number":
		return v.Type == gjson.Number
	case "integer":
		return v.Type == gjson.Number && v.Num == float64(int64(v.Num))
	case "boolean":
		return v.IsBool()
	case "object":
		return v.IsObject()
	case "array":
		return v.IsArray()
	case "null":
		return v.Type == gjson.Null
	}
	return true
}
