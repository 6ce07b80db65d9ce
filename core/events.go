package core

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Stream event types emitted by the Responses API.
const (
	EventResponseCreated        = "response.created"
	EventResponseInProgress     = "response.in_progress"
	EventResponseQueued         = "response.queued"
	EventResponseCompleted      = "response.completed"
	EventResponseIncomplete     = "response.incomplete"
	EventResponseFailed         = "response.failed"
	EventOutputItemAdded        = "response.output_item.added"
	EventOutputItemDone         = "response.output_item.done"
	EventContentPartAdded       = "response.content_part.added"
	EventContentPartDone        = "response.content_part.done"
	EventOutputTextDelta        = "response.output_text.delta"
	EventOutputTextDone         = "response.output_text.done"
	EventRefusalDelta           = "response.refusal.delta"
	EventRefusalDone            = "response.refusal.done"
	EventFunctionCallArgsDelta  = "response.function_call_arguments.delta"
	EventFunctionCallArgsDone   = "response.function_call_arguments.done"
	EventReasoningSummaryDelta  = "response.reasoning_summary_text.delta"
	EventReasoningSummaryDone   = "response.reasoning_summary_text.done"
	EventReasoningPartAdded     = "response.reasoning_summary_part.added"
	EventReasoningPartDone      = "response.reasoning_summary_part.done"
	EventError                  = "error"
	functionCallArgsEventPrefix = "response.function_call_arguments."
)

// StreamEvent is one decoded server-sent event. Only the fields relevant to
// Type are populated; unrecognized event types decode with Type alone.
type StreamEvent struct {
	Type           string
	SequenceNumber *int // server-assigned, when reported
	OutputIndex    int
	ContentIndex   int
	ItemID         string
	Delta          string
	Text           string
	Arguments      string
	Item           OutputItem
	Part           ContentPart
	RawPart        Value // part of any event other than content_part.*
	Response       *Response
	Error          *APIErrorBody
}

type streamEventWire struct {
	Type           string          `json:"type"`
	SequenceNumber *int            `json:"sequence_number"`
	OutputIndex    int             `json:"output_index"`
	ContentIndex   int             `json:"content_index"`
	ItemID         string          `json:"item_id"`
	Delta          string          `json:"delta"`
	Text           string          `json:"text"`
	Arguments      string          `json:"arguments"`
	Item           json.RawMessage `json:"item"`
	Part           json.RawMessage `json:"part"`
	Response       json.RawMessage `json:"response"`

	// error events carry their fields at the top level, older deployments
	// nest them under "error".
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
	Param   string          `json:"param"`
	Error   *errorBodyWire  `json:"error"`
}

// DecodeStreamEvent decodes one event payload. The type tag is read first;
// nested item and response objects are decoded with the content model, as
// is the part of a content_part event. Parts carried by other events, such
// as reasoning summary parts, are kept untyped in RawPart.
func DecodeStreamEvent(data []byte) (*StreamEvent, error) {
	if !json.Valid(data) {
		return nil, &DecodeError{Kind: DecodeMalformed, Err: errMalformedJSON}
	}
	tag := gjson.GetBytes(data, "type")
	if tag.Type != gjson.String || tag.Str == "" {
		return nil, &DecodeError{Kind: DecodeUnsupportedType, Tag: tag.String()}
	}

	var w streamEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, invalidField(tag.Str, err)
	}
	ev := &StreamEvent{
		Type:           w.Type,
		SequenceNumber: w.SequenceNumber,
		OutputIndex:    w.OutputIndex,
		ContentIndex:   w.ContentIndex,
		ItemID:         w.ItemID,
		Delta:          w.Delta,
		Text:           w.Text,
		Arguments:      w.Arguments,
	}

	if present(w.Item) {
		item, err := DecodeOutputItem(w.Item)
		if err != nil {
			return nil, err
		}
		ev.Item = item
	}
	if present(w.Part) {
		switch w.Type {
		case EventContentPartAdded, EventContentPartDone:
			part, err := DecodeContentPart(w.Part)
			if err != nil {
				return nil, err
			}
			ev.Part = part
		default:
			raw, err := DecodeValue(w.Part)
			if err != nil {
				return nil, invalidField(w.Type, err)
			}
			ev.RawPart = raw
		}
	}
	if present(w.Response) {
		resp, err := DecodeResponse(w.Response)
		if err != nil {
			return nil, err
		}
		ev.Response = resp
	}

	if w.Type == EventError {
		if w.Error != nil {
			ev.Error = w.Error.body()
		} else {
			ev.Error = &APIErrorBody{Message: w.Message, Code: rawCode(w.Code), Param: w.Param}
		}
		if ev.Error.Message == "" {
			ev.Error.Message = "stream error"
		}
	}
	return ev, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// IsTerminal reports whether the event ends the response.
func (e *StreamEvent) IsTerminal() bool {
	switch e.Type {
	case EventResponseCompleted, EventResponseIncomplete, EventResponseFailed:
		return true
	}
	return false
}

// ContainsFunctionCall reports whether the event carries any part of a
// function call: a function_call item or part, a response whose output
// holds one, or a function call argument event.
func (e *StreamEvent) ContainsFunctionCall() bool {
	if strings.HasPrefix(e.Type, functionCallArgsEventPrefix) {
		return true
	}
	if _, ok := e.Item.(*FunctionCall); ok {
		return true
	}
	if _, ok := e.Part.(*FunctionCall); ok {
		return true
	}
	if m, ok := e.Item.(*OutputMessage); ok {
		for _, p := range m.Content {
			if _, ok := p.(*FunctionCall); ok {
				return true
			}
		}
	}
	return e.Response != nil && e.Response.HasFunctionCalls()
}

// TextDelta returns the incremental assistant text carried by the event.
func (e *StreamEvent) TextDelta() string {
	if e.Type == EventOutputTextDelta {
		return e.Delta
	}
	return ""
}
