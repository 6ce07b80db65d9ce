package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/tidwall/gjson"
)

func TestImageDetailConstants(t *testing.T) {
	tests := []struct {
		name  string
		value ImageDetail
		want  string
	}{
		{"auto", ImageDetailAuto, "auto"},
		{"low", ImageDetailLow, "low"},
		{"high", ImageDetailHigh, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.want {
				t.Errorf("ImageDetail%s = %q, want %q", tt.name, tt.value, tt.want)
			}
		})
	}
}

func TestContentPartRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		part ContentPart
	}{
		{"input_text", &InputText{Text: "Hello, world!"}},
		{"input_image url", &InputImage{ImageURL: "https://example.com/cat.png", Detail: ImageDetailHigh}},
		{"input_image file", NewImageFileID("file-123")},
		{"input_image inline", NewImageData("image/png", []byte{0x89, 'P', 'N', 'G'})},
		{"input_file id", NewFileID("file-abc")},
		{"input_file inline", NewFileData("report.pdf", "application/pdf", []byte("%PDF-1.7"))},
		{"function_call_output", &FunctionCallOutput{CallID: "call_1", Output: `{"temp":21}`}},
		{"function_call_output with id", &FunctionCallOutput{ID: "fco_1", CallID: "call_1", Output: "ok"}},
		{"function_call", &FunctionCall{
			ID:        "fc_1",
			CallID:    "call_1",
			Name:      "get_weather",
			Arguments: MustValue(map[string]any{"city": "Paris", "days": 3}),
			Status:    "completed",
		}},
		{"output_text", &OutputText{Text: "Bonjour", Annotations: []Value{}}},
		{"refusal", &Refusal{Refusal: "I can't help with that."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeContentPart(tt.part)
			if err != nil {
				t.Fatalf("EncodeContentPart() error = %v", err)
			}
			got, err := DecodeContentPart(data)
			if err != nil {
				t.Fatalf("DecodeContentPart(%s) error = %v", data, err)
			}
			if !contentPartsEqual(got, tt.part) {
				t.Errorf("round trip = %#v, want %#v", got, tt.part)
			}
		})
	}
}

// contentPartsEqual compares parts, treating Value fields structurally.
func contentPartsEqual(a, b ContentPart) bool {
	fa, okA := a.(*FunctionCall)
	fb, okB := b.(*FunctionCall)
	if okA || okB {
		if !okA || !okB {
			return false
		}
		return fa.ID == fb.ID && fa.CallID == fb.CallID && fa.Name == fb.Name &&
			fa.Status == fb.Status && fa.Arguments.Equal(fb.Arguments)
	}
	ta, okA := a.(*OutputText)
	tb, okB := b.(*OutputText)
	if okA || okB {
		if !okA || !okB || ta.Text != tb.Text || len(ta.Annotations) != len(tb.Annotations) {
			return false
		}
		for i := range ta.Annotations {
			if !ta.Annotations[i].Equal(tb.Annotations[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func TestEncodeContentPartTagMatchesType(t *testing.T) {
	parts := []ContentPart{
		&InputText{},
		&InputImage{},
		&InputFile{},
		&FunctionCallOutput{},
		&FunctionCall{},
		&OutputText{},
		&Refusal{},
	}

	for _, p := range parts {
		t.Run(p.ContentType(), func(t *testing.T) {
			data, err := EncodeContentPart(p)
			if err != nil {
				t.Fatalf("EncodeContentPart() error = %v", err)
			}
			if got := gjson.GetBytes(data, "type").String(); got != p.ContentType() {
				t.Errorf("type = %q, want %q", got, p.ContentType())
			}
			if gjson.GetBytes(data, "role").Exists() {
				t.Errorf("content part encoded a role: %s", data)
			}
		})
	}
}

func TestDecodeContentPartUnsupportedType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		tag   string
	}{
		{"unknown tag", `{"type":"input_audio","data":"..."}`, "input_audio"},
		{"empty tag", `{"type":"","text":"x"}`, ""},
		{"missing tag", `{"text":"hello"}`, ""},
		{"numeric tag", `{"type":7}`, "7"},
		{"case differs", `{"type":"Input_Text","text":"x"}`, "Input_Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := DecodeContentPart([]byte(tt.input))
			if part != nil {
				t.Errorf("DecodeContentPart() part = %#v, want nil", part)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Kind != DecodeUnsupportedType {
				t.Errorf("Kind = %v, want %v", de.Kind, DecodeUnsupportedType)
			}
			if de.Tag != tt.tag {
				t.Errorf("Tag = %q, want %q", de.Tag, tt.tag)
			}
		})
	}
}

func TestDecodeContentPartIgnoresUnknownFields(t *testing.T) {
	part, err := DecodeContentPart([]byte(`{"text":"hi","type":"input_text","cache_control":{"ttl":5},"extra":[1]}`))
	if err != nil {
		t.Fatalf("DecodeContentPart() error = %v", err)
	}
	text, ok := part.(*InputText)
	if !ok || text.Text != "hi" {
		t.Errorf("part = %#v, want InputText{hi}", part)
	}
}

func TestDecodeContentPartMalformed(t *testing.T) {
	_, err := DecodeContentPart([]byte(`{"type":"input_text",`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != DecodeMalformed {
		t.Errorf("error = %v, want malformed DecodeError", err)
	}
}

func TestDecodeContentPartWrongFieldShape(t *testing.T) {
	_, err := DecodeContentPart([]byte(`{"type":"input_text","text":42}`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != DecodeInvalidField {
		t.Errorf("error = %v, want invalid field DecodeError", err)
	}
}

func TestInputFileRejectsBothSources(t *testing.T) {
	f := &InputFile{FileID: "file-1", FileData: EncodeDataURI("text/plain", []byte("x"))}
	if _, err := EncodeContentPart(f); !errors.Is(err, ErrDecode) {
		t.Errorf("EncodeContentPart() error = %v, want decode error", err)
	}

	_, err := DecodeContentPart([]byte(`{"type":"input_file","file_id":"f","file_data":"data:text/plain;base64,eA=="}`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != DecodeInvalidField || de.Field != "file_data" {
		t.Errorf("DecodeContentPart() error = %v, want invalid file_data", err)
	}
}

func TestFunctionCallArgumentsWireForm(t *testing.T) {
	fc := &FunctionCall{CallID: "c1", Name: "f", Arguments: MustValue(map[string]any{"b": 1, "a": "x"})}
	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	args := gjson.GetBytes(data, "arguments")
	if args.Type != gjson.String {
		t.Fatalf("arguments encoded as %v, want JSON string", args.Type)
	}
	if args.Str != `{"a":"x","b":1}` {
		t.Errorf("arguments = %s", args.Str)
	}
}

func TestFunctionCallArgumentsDecodeForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"string form", `{"type":"function_call","call_id":"c","name":"f","arguments":"{\"q\":\"go\"}"}`, MustValue(map[string]any{"q": "go"})},
		{"inline object", `{"type":"function_call","call_id":"c","name":"f","arguments":{"q":"go"}}`, MustValue(map[string]any{"q": "go"})},
		{"empty string", `{"type":"function_call","call_id":"c","name":"f","arguments":""}`, Object(nil)},
		{"absent", `{"type":"function_call","call_id":"c","name":"f"}`, Object(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := DecodeContentPart([]byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeContentPart() error = %v", err)
			}
			fc := part.(*FunctionCall)
			if !fc.Arguments.Equal(tt.want) {
				t.Errorf("Arguments = %v, want %v", fc.Arguments, tt.want)
			}
		})
	}
}

func TestFunctionCallArgumentsInvalid(t *testing.T) {
	_, err := DecodeContentPart([]byte(`{"type":"function_call","call_id":"c","name":"f","arguments":"{not json"}`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Field != "arguments" {
		t.Errorf("error = %v, want invalid arguments", err)
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	payload := []byte{0, 1, 2, 250, 251, 252}
	uri := EncodeDataURI("application/octet-stream", payload)
	if uri != "data:application/octet-stream;base64,AAEC+vv8" {
		t.Errorf("EncodeDataURI() = %q", uri)
	}

	mime, data, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI() error = %v", err)
	}
	if mime != "application/octet-stream" || !bytes.Equal(data, payload) {
		t.Errorf("ParseDataURI() = %q, %v", mime, data)
	}
}

func TestParseDataURIInvalid(t *testing.T) {
	inputs := []string{
		"https://example.com/a.png",
		"data:image/png,raw",
		"data:image/png;base64",
		"data:image/png;base64,***",
	}
	for _, in := range inputs {
		if _, _, err := ParseDataURI(in); err == nil {
			t.Errorf("ParseDataURI(%q) error = nil", in)
		}
	}
}

func TestInputImageConstructors(t *testing.T) {
	if img := NewImageURL("https://x/y.png"); img.ImageURL != "https://x/y.png" || img.IsInline() {
		t.Errorf("NewImageURL() = %#v", img)
	}
	if img := NewImageFileID("file-1"); img.FileID != "file-1" || img.ImageURL != "" {
		t.Errorf("NewImageFileID() = %#v", img)
	}
	img := NewImageData("image/jpeg", []byte("jpg"))
	if !img.IsInline() {
		t.Errorf("NewImageData() not inline: %#v", img)
	}
	if mime, data, err := ParseDataURI(img.ImageURL); err != nil || mime != "image/jpeg" || string(data) != "jpg" {
		t.Errorf("ParseDataURI(NewImageData) = %q, %q, %v", mime, data, err)
	}
}
