package core

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Content part type tags as they appear on the wire.
const (
	TypeInputText          = "input_text"
	TypeInputImage         = "input_image"
	TypeInputFile          = "input_file"
	TypeFunctionCallOutput = "function_call_output"
	TypeFunctionCall       = "function_call"
	TypeOutputText         = "output_text"
	TypeRefusal            = "refusal"
)

// ContentPart is one discriminated unit of message content. The concrete
// types are InputText, InputImage, InputFile, FunctionCallOutput,
// FunctionCall, OutputText and Refusal.
type ContentPart interface {
	// ContentType returns the wire discriminator for the part.
	ContentType() string
}

// ImageDetail specifies the level of detail for image processing.
type ImageDetail string

const (
	// ImageDetailAuto lets the model decide the appropriate detail level.
	ImageDetailAuto ImageDetail = "auto"
	// ImageDetailLow uses fewer tokens for faster processing.
	ImageDetailLow ImageDetail = "low"
	// ImageDetailHigh uses more tokens for detailed analysis.
	ImageDetailHigh ImageDetail = "high"
)

// InputText represents text content in an input message.
type InputText struct {
	Text string
}

// ContentType returns "input_text".
func (*InputText) ContentType() string { return TypeInputText }

// MarshalJSON implements json.Marshaler.
func (t *InputText) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{TypeInputText, t.Text})
}

// InputImage represents image content. ImageURL holds either an HTTPS URL or
// a data URI for inline bytes; FileID references an uploaded file.
type InputImage struct {
	ImageURL string
	FileID   string
	Detail   ImageDetail
}

// NewImageURL references an image by URL.
func NewImageURL(url string) *InputImage {
	return &InputImage{ImageURL: url}
}

// NewImageFileID references an image uploaded through the Files API.
func NewImageFileID(fileID string) *InputImage {
	return &InputImage{FileID: fileID}
}

// NewImageData embeds image bytes as a base64 data URI.
func NewImageData(mimeType string, data []byte) *InputImage {
	return &InputImage{ImageURL: EncodeDataURI(mimeType, data)}
}

// ContentType returns "input_image".
func (*InputImage) ContentType() string { return TypeInputImage }

// IsInline reports whether the image carries its bytes in a data URI.
func (i *InputImage) IsInline() bool {
	return strings.HasPrefix(i.ImageURL, "data:")
}

// MarshalJSON implements json.Marshaler.
func (i *InputImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string      `json:"type"`
		ImageURL string      `json:"image_url,omitempty"`
		FileID   string      `json:"file_id,omitempty"`
		Detail   ImageDetail `json:"detail,omitempty"`
	}{TypeInputImage, i.ImageURL, i.FileID, i.Detail})
}

// InputFile represents file content. At most one of FileData and FileID is
// set; FileData is a base64 data URI.
type InputFile struct {
	Filename string
	FileData string
	FileID   string
}

// NewFileID references a file uploaded through the Files API.
func NewFileID(fileID string) *InputFile {
	return &InputFile{FileID: fileID}
}

// NewFileData embeds file bytes as a base64 data URI.
func NewFileData(filename, mimeType string, data []byte) *InputFile {
	return &InputFile{Filename: filename, FileData: EncodeDataURI(mimeType, data)}
}

// ContentType returns "input_file".
func (*InputFile) ContentType() string { return TypeInputFile }

var errFileSource = errors.New("file_data and file_id are mutually exclusive")

// MarshalJSON implements json.Marshaler.
func (f *InputFile) MarshalJSON() ([]byte, error) {
	if f.FileData != "" && f.FileID != "" {
		return nil, invalidField("file_data", errFileSource)
	}
	return json.Marshal(struct {
		Type     string `json:"type"`
		Filename string `json:"filename,omitempty"`
		FileData string `json:"file_data,omitempty"`
		FileID   string `json:"file_id,omitempty"`
	}{TypeInputFile, f.Filename, f.FileData, f.FileID})
}

// FunctionCallOutput returns the result of a function call to the model.
type FunctionCallOutput struct {
	ID     string
	CallID string
	Output string
}

// ContentType returns "function_call_output".
func (*FunctionCallOutput) ContentType() string { return TypeFunctionCallOutput }

// ItemType returns "function_call_output".
func (*FunctionCallOutput) ItemType() string { return TypeFunctionCallOutput }

// MarshalJSON implements json.Marshaler.
func (o *FunctionCallOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		ID     string `json:"id,omitempty"`
		CallID string `json:"call_id"`
		Output string `json:"output"`
	}{TypeFunctionCallOutput, o.ID, o.CallID, o.Output})
}

// FunctionCall is a server-produced request to invoke a tool. Arguments is
// a JSON object; on the wire it travels as a JSON-encoded string.
type FunctionCall struct {
	ID        string
	CallID    string
	Name      string
	Arguments Value
	Status    string
}

// ContentType returns "function_call".
func (*FunctionCall) ContentType() string { return TypeFunctionCall }

// ItemType returns "function_call".
func (*FunctionCall) ItemType() string { return TypeFunctionCall }

// MarshalJSON implements json.Marshaler.
func (c *FunctionCall) MarshalJSON() ([]byte, error) {
	args := c.Arguments
	if args.IsNull() {
		args = Object(nil)
	}
	encoded, err := args.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type      string `json:"type"`
		ID        string `json:"id,omitempty"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		Status    string `json:"status,omitempty"`
	}{TypeFunctionCall, c.ID, c.CallID, c.Name, string(encoded), c.Status})
}

// OutputText is assistant text produced by the model.
type OutputText struct {
	Text        string
	Annotations []Value
}

// ContentType returns "output_text".
func (*OutputText) ContentType() string { return TypeOutputText }

// MarshalJSON implements json.Marshaler.
func (t *OutputText) MarshalJSON() ([]byte, error) {
	annotations := t.Annotations
	if annotations == nil {
		annotations = []Value{}
	}
	return json.Marshal(struct {
		Type        string  `json:"type"`
		Text        string  `json:"text"`
		Annotations []Value `json:"annotations"`
	}{TypeOutputText, t.Text, annotations})
}

// Refusal is a model refusal in place of output text.
type Refusal struct {
	Refusal string
}

// ContentType returns "refusal".
func (*Refusal) ContentType() string { return TypeRefusal }

// MarshalJSON implements json.Marshaler.
func (r *Refusal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Refusal string `json:"refusal"`
	}{TypeRefusal, r.Refusal})
}

// EncodeContentPart encodes a content part with its type tag.
func EncodeContentPart(part ContentPart) ([]byte, error) {
	if part == nil {
		return nil, invalidField("type", errors.New("nil content part"))
	}
	return json.Marshal(part)
}

// DecodeContentPart decodes one content part. The "type" discriminator is
// read before any payload field; unknown extra fields are ignored, but an
// unknown or missing tag fails with DecodeUnsupportedType.
func DecodeContentPart(data []byte) (ContentPart, error) {
	if !json.Valid(data) {
		return nil, &DecodeError{Kind: DecodeMalformed, Err: errMalformedJSON}
	}
	tag := gjson.GetBytes(data, "type")
	if tag.Type != gjson.String {
		return nil, &DecodeError{Kind: DecodeUnsupportedType, Tag: tag.String()}
	}

	switch tag.Str {
	case TypeInputText:
		var w struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("text", err)
		}
		return &InputText{Text: w.Text}, nil

	case TypeInputImage:
		var w struct {
			ImageURL string      `json:"image_url"`
			FileID   string      `json:"file_id"`
			Detail   ImageDetail `json:"detail"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("image_url", err)
		}
		return &InputImage{ImageURL: w.ImageURL, FileID: w.FileID, Detail: w.Detail}, nil

	case TypeInputFile:
		var w struct {
			Filename string `json:"filename"`
			FileData string `json:"file_data"`
			FileID   string `json:"file_id"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("file_data", err)
		}
		if w.FileData != "" && w.FileID != "" {
			return nil, invalidField("file_data", errFileSource)
		}
		return &InputFile{Filename: w.Filename, FileData: w.FileData, FileID: w.FileID}, nil

	case TypeFunctionCallOutput:
		var w struct {
			ID     string `json:"id"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("output", err)
		}
		return &FunctionCallOutput{ID: w.ID, CallID: w.CallID, Output: w.Output}, nil

	case TypeFunctionCall:
		return decodeFunctionCall(data)

	case TypeOutputText:
		var w struct {
			Text        string  `json:"text"`
			Annotations []Value `json:"annotations"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("text", err)
		}
		return &OutputText{Text: w.Text, Annotations: w.Annotations}, nil

	case TypeRefusal:
		var w struct {
			Refusal string `json:"refusal"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, invalidField("refusal", err)
		}
		return &Refusal{Refusal: w.Refusal}, nil

	default:
		return nil, &DecodeError{Kind: DecodeUnsupportedType, Tag: tag.Str}
	}
}

func decodeFunctionCall(data []byte) (*FunctionCall, error) {
	var w struct {
		ID        string          `json:"id"`
		CallID    string          `json:"call_id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
		Status    string          `json:"status"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, invalidField("arguments", err)
	}
	args, err := decodeArguments(w.Arguments)
	if err != nil {
		return nil, err
	}
	return &FunctionCall{ID: w.ID, CallID: w.CallID, Name: w.Name, Arguments: args, Status: w.Status}, nil
}

// decodeArguments accepts the JSON-encoded string form used on the wire and
// an inline object. Absent or empty arguments decode to an empty object.
func decodeArguments(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Object(nil), nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if strings.TrimSpace(encoded) == "" {
			return Object(nil), nil
		}
		v, err := DecodeValue([]byte(encoded))
		if err != nil {
			return Value{}, invalidField("arguments", err)
		}
		return v, nil
	}
	v, err := DecodeValue(raw)
	if err != nil {
		return Value{}, invalidField("arguments", err)
	}
	return v, nil
}

func decodeContentParts(raw []json.RawMessage) ([]ContentPart, error) {
	parts := make([]ContentPart, 0, len(raw))
	for _, r := range raw {
		part, err := DecodeContentPart(r)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// EncodeDataURI builds a data:<mime>;base64,<payload> URI.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var errNotDataURI = errors.New("not a base64 data URI")

// ParseDataURI splits a base64 data URI into its MIME type and payload bytes.
func ParseDataURI(uri string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errNotDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURI
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, errNotDataURI
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}
