package core

import (
	"encoding/json"
	"errors"
)

// EncodingFormat specifies the embedding output format.
type EncodingFormat string

const (
	// EncodingFormatFloat returns embeddings as float arrays.
	EncodingFormatFloat EncodingFormat = "float"
	// EncodingFormatBase64 returns embeddings as base64-encoded strings.
	EncodingFormatBase64 EncodingFormat = "base64"
)

// EmbeddingInput is either a single string or a list of strings. The wire
// format offers no discriminator; decoding tries a string first, then an
// array of strings.
type EmbeddingInput struct {
	single *string
	many   []string
}

// SingleInput embeds one text.
func SingleInput(text string) EmbeddingInput {
	return EmbeddingInput{single: &text}
}

// BatchInput embeds several texts in one call.
func BatchInput(texts ...string) EmbeddingInput {
	many := make([]string, len(texts))
	copy(many, texts)
	return EmbeddingInput{many: many}
}

// Texts returns the inputs in order.
func (in EmbeddingInput) Texts() []string {
	if in.single != nil {
		return []string{*in.single}
	}
	out := make([]string, len(in.many))
	copy(out, in.many)
	return out
}

// Len returns the number of texts.
func (in EmbeddingInput) Len() int {
	if in.single != nil {
		return 1
	}
	return len(in.many)
}

// IsBatch reports whether the input is the array form.
func (in EmbeddingInput) IsBatch() bool {
	return in.single == nil
}

// MarshalJSON implements json.Marshaler.
func (in EmbeddingInput) MarshalJSON() ([]byte, error) {
	if in.single != nil {
		return json.Marshal(*in.single)
	}
	many := in.many
	if many == nil {
		many = []string{}
	}
	return json.Marshal(many)
}

var errEmbeddingInput = errors.New("input must be a string or an array of strings")

// UnmarshalJSON implements json.Unmarshaler.
func (in *EmbeddingInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*in = SingleInput(s)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*in = EmbeddingInput{many: many}
		return nil
	}
	return invalidField("input", errEmbeddingInput)
}

// EmbeddingRequest represents a request to generate embeddings.
type EmbeddingRequest struct {
	Model          string         `json:"model"`
	Input          EmbeddingInput `json:"input"`
	EncodingFormat EncodingFormat `json:"encoding_format,omitempty"`
	Dimensions     *int           `json:"dimensions,omitempty"`
	User           string         `json:"user,omitempty"`
}

// Embedding is a single embedding result.
type Embedding struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingUsage tracks token consumption for embeddings.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingResponse contains the generated embeddings.
type EmbeddingResponse struct {
	Object string         `json:"object"`
	Data   []Embedding    `json:"data"`
	Model  string         `json:"model"`
	Usage  EmbeddingUsage `json:"usage"`
}

// Vectors returns the embedding vectors ordered by input index.
func (r *EmbeddingResponse) Vectors() [][]float64 {
	out := make([][]float64, len(r.Data))
	for _, d := range r.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out
}
