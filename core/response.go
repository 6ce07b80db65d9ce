package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response statuses reported by the API.
const (
	StatusCompleted  = "completed"
	StatusInProgress = "in_progress"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusQueued     = "queued"
)

// Output item type tags. function_call is shared with the content model.
const (
	ItemTypeMessage   = "message"
	ItemTypeReasoning = "reasoning"
)

// OutputItem is one element of Response.Output.
type OutputItem interface {
	ItemType() string
}

// OutputMessage is an assistant message produced by the model.
type OutputMessage struct {
	ID      string
	Role    Role
	Status  string
	Content []ContentPart
}

// ItemType returns "message".
func (*OutputMessage) ItemType() string { return ItemTypeMessage }

// MarshalJSON implements json.Marshaler.
func (m *OutputMessage) MarshalJSON() ([]byte, error) {
	content := m.Content
	if content == nil {
		content = []ContentPart{}
	}
	return json.Marshal(struct {
		Type    string        `json:"type"`
		ID      string        `json:"id,omitempty"`
		Role    Role          `json:"role"`
		Status  string        `json:"status,omitempty"`
		Content []ContentPart `json:"content"`
	}{ItemTypeMessage, m.ID, m.Role, m.Status, content})
}

// Text concatenates the output_text parts of the message.
func (m *OutputMessage) Text() string {
	var sb strings.Builder
	for _, p := range m.Content {
		if t, ok := p.(*OutputText); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// Reasoning carries the reasoning summary of a reasoning model.
type Reasoning struct {
	ID      string
	Summary []string
}

// ItemType returns "reasoning".
func (*Reasoning) ItemType() string { return ItemTypeReasoning }

type summaryText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MarshalJSON implements json.Marshaler.
func (r *Reasoning) MarshalJSON() ([]byte, error) {
	summary := make([]summaryText, len(r.Summary))
	for i, s := range r.Summary {
		summary[i] = summaryText{Type: "summary_text", Text: s}
	}
	return json.Marshal(struct {
		Type    string        `json:"type"`
		ID      string        `json:"id,omitempty"`
		Summary []summaryText `json:"summary"`
	}{ItemTypeReasoning, r.ID, summary})
}

// UnknownItem preserves an output item whose type this package does not
// model, such as web_search_call or file_search_call.
type UnknownItem struct {
	Type string
	Raw  Value
}

// ItemType returns the item's wire type.
func (u *UnknownItem) ItemType() string { return u.Type }

// MarshalJSON re-emits the original item.
func (u *UnknownItem) MarshalJSON() ([]byte, error) {
	return u.Raw.MarshalJSON()
}

// DecodeOutputItem decodes one output item by its type tag. Unrecognized
// types are kept as *UnknownItem.
func DecodeOutputItem(data []byte) (OutputItem, error) {
	if !json.Valid(data) {
		return nil, &DecodeError{Kind: DecodeMalformed, Err: errMalformedJSON}
	}
	tag := gjson.GetBytes(data, "type")
	if tag.Type != gjson.String {
		return nil, &DecodeError{Kind: DecodeUnsupportedType, Tag: tag.String()}
	}

	switch tag.Str {
	case ItemTypeMessage:
		var w struct {
			ID      string            `json:"id"`
			Role    Role              `json:"role"`
			Status  string            `json:"status"`
			Content []json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("content", err)
		}
		parts, err := decodeContentParts(w.Content)
		if err != nil {
			return nil, err
		}
		return &OutputMessage{ID: w.ID, Role: w.Role, Status: w.Status, Content: parts}, nil

	case TypeFunctionCall:
		return decodeFunctionCall(data)

	case ItemTypeReasoning:
		var w struct {
			ID      string        `json:"id"`
			Summary []summaryText `json:"summary"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("summary", err)
		}
		r := &Reasoning{ID: w.ID}
		for _, s := range w.Summary {
			r.Summary = append(r.Summary, s.Text)
		}
		return r, nil

	default:
		raw, err := DecodeValue(data)
		if err != nil {
			return nil, err
		}
		return &UnknownItem{Type: tag.Str, Raw: raw}, nil
	}
}

// IncompleteDetails explains why a response stopped early.
type IncompleteDetails struct {
	Reason string `json:"reason"`
}

// Response is a model response.
type Response struct {
	ID                 string
	Object             string
	CreatedAt          time.Time
	Model              string
	Status             string
	Output             []OutputItem
	PreviousResponseID string
	Usage              *Usage
	Error              *APIErrorBody
	IncompleteDetails  *IncompleteDetails
}

type responseWire struct {
	ID                 string             `json:"id,omitempty"`
	Object             string             `json:"object,omitempty"`
	CreatedAt          int64              `json:"created_at,omitempty"`
	Model              string             `json:"model,omitempty"`
	Status             string             `json:"status,omitempty"`
	Output             []json.RawMessage  `json:"output"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
	Usage              *Usage             `json:"usage,omitempty"`
	Error              *errorBodyWire     `json:"error,omitempty"`
	IncompleteDetails  *IncompleteDetails `json:"incomplete_details,omitempty"`
}

type errorBodyWire struct {
	Message string          `json:"message"`
	Type    string          `json:"type,omitempty"`
	Code    json.RawMessage `json:"code,omitempty"`
	Param   string          `json:"param,omitempty"`
}

func (w *errorBodyWire) body() *APIErrorBody {
	if w == nil {
		return nil
	}
	return &APIErrorBody{Message: w.Message, Type: w.Type, Code: rawCode(w.Code), Param: w.Param}
}

// DecodeResponse decodes a response body.
func DecodeResponse(data []byte) (*Response, error) {
	if !json.Valid(data) {
		return nil, &DecodeError{Kind: DecodeMalformed, Err: errMalformedJSON}
	}
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, invalidField("response", err)
	}
	resp := &Response{
		ID:                 w.ID,
		Object:             w.Object,
		Model:              w.Model,
		Status:             w.Status,
		PreviousResponseID: w.PreviousResponseID,
		Usage:              w.Usage,
		Error:              w.Error.body(),
		IncompleteDetails:  w.IncompleteDetails,
	}
	if w.CreatedAt > 0 {
		resp.CreatedAt = time.Unix(w.CreatedAt, 0).UTC()
	}
	for _, raw := range w.Output {
		item, err := DecodeOutputItem(raw)
		if err != nil {
			return nil, err
		}
		resp.Output = append(resp.Output, item)
	}
	return resp, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	resp, err := DecodeResponse(data)
	if err != nil {
		return err
	}
	*r = *resp
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *Response) MarshalJSON() ([]byte, error) {
	w := responseWire{
		ID:                 r.ID,
		Object:             r.Object,
		Model:              r.Model,
		Status:             r.Status,
		PreviousResponseID: r.PreviousResponseID,
		Usage:              r.Usage,
		IncompleteDetails:  r.IncompleteDetails,
		Output:             make([]json.RawMessage, 0, len(r.Output)),
	}
	if !r.CreatedAt.IsZero() {
		w.CreatedAt = r.CreatedAt.Unix()
	}
	if r.Error != nil {
		w.Error = &errorBodyWire{Message: r.Error.Message, Type: r.Error.Type, Param: r.Error.Param}
		if r.Error.Code != "" {
			code, _ := json.Marshal(r.Error.Code)
			w.Error.Code = code
		}
	}
	for _, item := range r.Output {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		w.Output = append(w.Output, data)
	}
	return json.Marshal(w)
}

// Text concatenates the text of every output message.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, item := range r.Output {
		if m, ok := item.(*OutputMessage); ok {
			sb.WriteString(m.Text())
		}
	}
	return sb.String()
}

// FunctionCalls returns the function calls requested by the model, in
// output order.
func (r *Response) FunctionCalls() []*FunctionCall {
	var calls []*FunctionCall
	for _, item := range r.Output {
		if fc, ok := item.(*FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

// HasFunctionCalls reports whether the response requests any tool calls.
func (r *Response) HasFunctionCalls() bool {
	for _, item := range r.Output {
		if _, ok := item.(*FunctionCall); ok {
			return true
		}
	}
	return false
}

// Failed reports whether the API marked the response as failed.
func (r *Response) Failed() bool {
	return r.Status == StatusFailed
}
