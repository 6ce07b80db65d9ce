package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprintDoc holds the request fields that affect the server's answer.
// Stream, TraceID, Metadata and User are deliberately absent. Store is
// kept: a response created with store=false cannot be chained from.
type fingerprintDoc struct {
	Model              string            `json:"model"`
	Input              []json.RawMessage `json:"input"`
	Instructions       string            `json:"instructions"`
	PreviousResponseID string            `json:"previous_response_id"`
	Tools              []ToolDefinition  `json:"tools"`
	ToolChoice         Value             `json:"tool_choice"`
	Temperature        *float64          `json:"temperature"`
	TopP               *float64          `json:"top_p"`
	MaxOutputTokens    *int              `json:"max_output_tokens"`
	ReasoningEffort    ReasoningEffort   `json:"reasoning_effort"`
	Truncation         string            `json:"truncation"`
	Store              bool              `json:"store"`
}

// Fingerprint returns a hex SHA-256 digest of the semantically relevant
// request fields. Requests that differ only in client-side fields produce
// the same fingerprint.
func Fingerprint(req *Request) (string, error) {
	input, err := encodeInput(req.Input)
	if err != nil {
		return "", fmt.Errorf("fingerprint input: %w", err)
	}
	doc := fingerprintDoc{
		Model:              req.Model,
		Input:              input,
		Instructions:       req.Instructions,
		PreviousResponseID: req.PreviousResponseID,
		Tools:              req.Tools,
		ToolChoice:         req.ToolChoice,
		Temperature:        req.Temperature,
		TopP:               req.TopP,
		MaxOutputTokens:    req.MaxOutputTokens,
		ReasoningEffort:    req.ReasoningEffort,
		Truncation:         req.Truncation,
		Store:              req.Store == nil || *req.Store, // server default is true
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
