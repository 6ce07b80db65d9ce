package core

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// Role represents a message participant role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one input item: a role plus an ordered sequence of content
// parts. Tool messages carry only function_call and function_call_output
// parts and are encoded without a role.
type Message struct {
	Role    Role
	Content []ContentPart
}

// SystemMessage creates a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{&InputText{Text: text}}}
}

// UserMessage creates a user message with a single text part.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{&InputText{Text: text}}}
}

// UserParts creates a multimodal user message.
func UserParts(parts ...ContentPart) Message {
	content := make([]ContentPart, len(parts))
	copy(content, parts)
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message for conversation history.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{&OutputText{Text: text}}}
}

// ToolOutputMessage returns the result of a function call to the model.
func ToolOutputMessage(callID, output string) Message {
	return Message{Role: RoleTool, Content: []ContentPart{&FunctionCallOutput{CallID: callID, Output: output}}}
}

// IsToolMessage reports whether every part of m is a function call or a
// function call output. Such messages are encoded without a role.
func (m Message) IsToolMessage() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, p := range m.Content {
		switch p.(type) {
		case *FunctionCallOutput, *FunctionCall:
		default:
			return false
		}
	}
	return true
}

var errMultiPartTool = errors.New("tool message must hold exactly one part; use Request encoding to flatten")

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.IsToolMessage() {
		if len(m.Content) != 1 {
			return nil, invalidField("content", errMultiPartTool)
		}
		return json.Marshal(m.Content[0])
	}
	content := m.Content
	if content == nil {
		content = []ContentPart{}
	}
	return json.Marshal(struct {
		Role    Role          `json:"role,omitempty"`
		Content []ContentPart `json:"content"`
	}{m.Role, content})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// DecodeMessage decodes one input item. A bare function_call or
// function_call_output item decodes to a tool message. Otherwise the
// content field is probed first as a string, then as an array of parts.
func DecodeMessage(data []byte) (Message, error) {
	if !json.Valid(data) {
		return Message{}, &DecodeError{Kind: DecodeMalformed, Err: errMalformedJSON}
	}

	if tag := gjson.GetBytes(data, "type").Str; tag == TypeFunctionCall || tag == TypeFunctionCallOutput {
		part, err := DecodeContentPart(data)
		if err != nil {
			return Message{}, err
		}
		return Message{Role: RoleTool, Content: []ContentPart{part}}, nil
	}

	var w struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, invalidField("role", err)
	}
	msg := Message{Role: w.Role}
	if len(w.Content) == 0 || string(w.Content) == "null" {
		return msg, nil
	}

	var text string
	if err := json.Unmarshal(w.Content, &text); err == nil {
		if w.Role == RoleAssistant {
			msg.Content = []ContentPart{&OutputText{Text: text}}
		} else {
			msg.Content = []ContentPart{&InputText{Text: text}}
		}
		return msg, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(w.Content, &raw); err != nil {
		return Message{}, invalidField("content", err)
	}
	parts, err := decodeContentParts(raw)
	if err != nil {
		return Message{}, err
	}
	msg.Content = parts
	return msg, nil
}

// encodeInput flattens messages into wire input items. Multi-part tool
// messages become one item per part.
func encodeInput(msgs []Message) ([]json.RawMessage, error) {
	items := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.IsToolMessage() {
			for _, p := range m.Content {
				data, err := EncodeContentPart(p)
				if err != nil {
					return nil, err
				}
				items = append(items, data)
			}
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		items = append(items, data)
	}
	return items, nil
}
