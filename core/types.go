// Package core provides the azresponses client and types.
package core

import (
	"encoding/json"
)

// ReasoningEffort represents the level of reasoning effort for models that support it.
type ReasoningEffort string

const (
	ReasoningEffortNone   ReasoningEffort = "none"
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

// Built-in tool types available in the Responses API.
const (
	ToolTypeFunction        = "function"
	ToolTypeWebSearch       = "web_search_preview"
	ToolTypeFileSearch      = "file_search"
	ToolTypeCodeInterpreter = "code_interpreter"
)

// ToolDefinition declares a tool the model may call. Built-in tools carry
// only Type.
type ToolDefinition struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *Value `json:"parameters,omitempty"`
	Strict      *bool  `json:"strict,omitempty"`
}

// FunctionTool declares a function tool with a JSON schema for its
// parameters.
func FunctionTool(name, description string, parameters Value) ToolDefinition {
	return ToolDefinition{
		Type:        ToolTypeFunction,
		Name:        name,
		Description: description,
		Parameters:  &parameters,
	}
}

// BuiltInTool declares one of the server-side tools.
func BuiltInTool(toolType string) ToolDefinition {
	return ToolDefinition{Type: toolType}
}

// Tool choice modes. A specific function is selected with ToolChoiceFunction.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// ToolChoiceFunction forces the model to call the named function.
func ToolChoiceFunction(name string) Value {
	return Object(map[string]Value{
		"type": String(ToolTypeFunction),
		"name": String(name),
	})
}

// Request is a request to create a response. Stream is set by the client
// and TraceID never leaves the process except as a request header.
type Request struct {
	Model              string
	Input              []Message
	Instructions       string
	PreviousResponseID string
	Tools              []ToolDefinition
	ToolChoice         Value // string mode or object; null means unset
	Temperature        *float64
	TopP               *float64
	MaxOutputTokens    *int
	ReasoningEffort    ReasoningEffort
	Truncation         string
	Metadata           map[string]string
	Store              *bool
	User               string
	Stream             bool
	TraceID            string
}

// Clone returns a copy of r whose slices and maps can be modified
// independently.
func (r *Request) Clone() *Request {
	out := *r
	out.Input = append([]Message(nil), r.Input...)
	out.Tools = append([]ToolDefinition(nil), r.Tools...)
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

type reasoningWire struct {
	Effort ReasoningEffort `json:"effort"`
}

type requestWire struct {
	Model              string            `json:"model"`
	Input              []json.RawMessage `json:"input"`
	Instructions       string            `json:"instructions,omitempty"`
	PreviousResponseID string            `json:"previous_response_id,omitempty"`
	Tools              []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice         *Value            `json:"tool_choice,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	TopP               *float64          `json:"top_p,omitempty"`
	MaxOutputTokens    *int              `json:"max_output_tokens,omitempty"`
	Reasoning          *reasoningWire    `json:"reasoning,omitempty"`
	Truncation         string            `json:"truncation,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Store              *bool             `json:"store,omitempty"`
	User               string            `json:"user,omitempty"`
	Stream             bool              `json:"stream,omitempty"`
}

// MarshalJSON encodes the request body. TraceID is not part of the body.
func (r *Request) MarshalJSON() ([]byte, error) {
	w, err := r.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (r *Request) wire() (*requestWire, error) {
	input, err := encodeInput(r.Input)
	if err != nil {
		return nil, err
	}
	w := &requestWire{
		Model:              r.Model,
		Input:              input,
		Instructions:       r.Instructions,
		PreviousResponseID: r.PreviousResponseID,
		Tools:              r.Tools,
		Temperature:        r.Temperature,
		TopP:               r.TopP,
		MaxOutputTokens:    r.MaxOutputTokens,
		Truncation:         r.Truncation,
		Metadata:           r.Metadata,
		Store:              r.Store,
		User:               r.User,
		Stream:             r.Stream,
	}
	if !r.ToolChoice.IsNull() {
		tc := r.ToolChoice
		w.ToolChoice = &tc
	}
	if r.ReasoningEffort != "" {
		w.Reasoning = &reasoningWire{Effort: r.ReasoningEffort}
	}
	return w, nil
}

// Usage reports token consumption for a response.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	ReasoningTokens int `json:"-"`
	CachedTokens    int `json:"-"`
}

// UnmarshalJSON reads the nested token detail objects.
func (u *Usage) UnmarshalJSON(data []byte) error {
	var w struct {
		InputTokens        int `json:"input_tokens"`
		OutputTokens       int `json:"output_tokens"`
		TotalTokens        int `json:"total_tokens"`
		InputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"input_tokens_details"`
		OutputTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"output_tokens_details"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = Usage{
		InputTokens:     w.InputTokens,
		OutputTokens:    w.OutputTokens,
		TotalTokens:     w.TotalTokens,
		ReasoningTokens: w.OutputTokensDetails.ReasoningTokens,
		CachedTokens:    w.InputTokensDetails.CachedTokens,
	}
	return nil
}
