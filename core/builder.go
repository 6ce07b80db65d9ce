package core

import "context"

// ResponseBuilder provides a fluent API for building response requests.
// ResponseBuilder is NOT thread-safe and should not be shared across goroutines.
type ResponseBuilder struct {
	client *Client
	req    Request
}

// System appends a system message.
func (b *ResponseBuilder) System(s string) *ResponseBuilder {
	b.req.Input = append(b.req.Input, SystemMessage(s))
	return b
}

// User appends a user message.
func (b *ResponseBuilder) User(s string) *ResponseBuilder {
	b.req.Input = append(b.req.Input, UserMessage(s))
	return b
}

// Assistant appends an assistant message from earlier in the conversation.
func (b *ResponseBuilder) Assistant(s string) *ResponseBuilder {
	b.req.Input = append(b.req.Input, AssistantMessage(s))
	return b
}

// Parts appends a multimodal user message.
func (b *ResponseBuilder) Parts(parts ...ContentPart) *ResponseBuilder {
	b.req.Input = append(b.req.Input, UserParts(parts...))
	return b
}

// Message appends a prebuilt message.
func (b *ResponseBuilder) Message(m Message) *ResponseBuilder {
	b.req.Input = append(b.req.Input, m)
	return b
}

// ToolOutput appends the result of a function call.
func (b *ResponseBuilder) ToolOutput(callID, output string) *ResponseBuilder {
	b.req.Input = append(b.req.Input, ToolOutputMessage(callID, output))
	return b
}

// Instructions sets the system instructions.
func (b *ResponseBuilder) Instructions(s string) *ResponseBuilder {
	b.req.Instructions = s
	return b
}

// Temperature sets the temperature parameter.
func (b *ResponseBuilder) Temperature(v float64) *ResponseBuilder {
	b.req.Temperature = &v
	return b
}

// TopP sets the nucleus sampling parameter.
func (b *ResponseBuilder) TopP(v float64) *ResponseBuilder {
	b.req.TopP = &v
	return b
}

// MaxOutputTokens caps the number of generated tokens.
func (b *ResponseBuilder) MaxOutputTokens(n int) *ResponseBuilder {
	b.req.MaxOutputTokens = &n
	return b
}

// ReasoningEffort sets the reasoning effort level for models that support it.
func (b *ResponseBuilder) ReasoningEffort(level ReasoningEffort) *ResponseBuilder {
	b.req.ReasoningEffort = level
	return b
}

// Tools adds tool definitions to the request.
func (b *ResponseBuilder) Tools(ts ...ToolDefinition) *ResponseBuilder {
	b.req.Tools = append(b.req.Tools, ts...)
	return b
}

// WebSearch adds the web search built-in tool.
func (b *ResponseBuilder) WebSearch() *ResponseBuilder {
	return b.Tools(BuiltInTool(ToolTypeWebSearch))
}

// FileSearch adds the file_search built-in tool.
func (b *ResponseBuilder) FileSearch() *ResponseBuilder {
	return b.Tools(BuiltInTool(ToolTypeFileSearch))
}

// CodeInterpreter adds the code_interpreter built-in tool.
func (b *ResponseBuilder) CodeInterpreter() *ResponseBuilder {
	return b.Tools(BuiltInTool(ToolTypeCodeInterpreter))
}

// ToolChoice sets the tool choice mode: "auto", "none", "required".
func (b *ResponseBuilder) ToolChoice(mode string) *ResponseBuilder {
	b.req.ToolChoice = String(mode)
	return b
}

// ForceFunction requires the model to call the named function.
func (b *ResponseBuilder) ForceFunction(name string) *ResponseBuilder {
	b.req.ToolChoice = ToolChoiceFunction(name)
	return b
}

// ContinueFrom chains this request to a previous response.
func (b *ResponseBuilder) ContinueFrom(responseID string) *ResponseBuilder {
	b.req.PreviousResponseID = responseID
	return b
}

// Truncation sets the truncation mode for the request.
func (b *ResponseBuilder) Truncation(mode string) *ResponseBuilder {
	b.req.Truncation = mode
	return b
}

// Metadata attaches a key/value pair stored with the response.
func (b *ResponseBuilder) Metadata(key, value string) *ResponseBuilder {
	if b.req.Metadata == nil {
		b.req.Metadata = make(map[string]string)
	}
	b.req.Metadata[key] = value
	return b
}

// Store controls whether the server keeps the response for later
// retrieval and chaining.
func (b *ResponseBuilder) Store(store bool) *ResponseBuilder {
	b.req.Store = &store
	return b
}

// EndUser sets the end-user identifier for abuse monitoring.
func (b *ResponseBuilder) EndUser(id string) *ResponseBuilder {
	b.req.User = id
	return b
}

// TraceID sets the client trace id sent as x-ms-client-request-id.
func (b *ResponseBuilder) TraceID(id string) *ResponseBuilder {
	b.req.TraceID = id
	return b
}

// Request returns a copy of the request built so far.
func (b *ResponseBuilder) Request() *Request {
	return b.req.Clone()
}

// GetResponse sends the request and returns the response envelope.
func (b *ResponseBuilder) GetResponse(ctx context.Context) (*Envelope[*Response], error) {
	return b.client.Create(ctx, &b.req)
}

// Stream sends the request with streaming enabled.
func (b *ResponseBuilder) Stream(ctx context.Context) (*ResponseStream, error) {
	return b.client.Stream(ctx, &b.req)
}

// MessageBuilder provides a fluent API for building multimodal messages.
type MessageBuilder struct {
	parent *ResponseBuilder
	role   Role
	parts  []ContentPart
}

// UserMultimodal starts building a multimodal user message.
func (b *ResponseBuilder) UserMultimodal() *MessageBuilder {
	return &MessageBuilder{
		parent: b,
		role:   RoleUser,
	}
}

// Text adds a text content part to the message.
func (m *MessageBuilder) Text(s string) *MessageBuilder {
	m.parts = append(m.parts, &InputText{Text: s})
	return m
}

// ImageURL adds an image by URL.
func (m *MessageBuilder) ImageURL(url string) *MessageBuilder {
	m.parts = append(m.parts, NewImageURL(url))
	return m
}

// ImageURLWithDetail adds an image by URL with a specific detail level.
func (m *MessageBuilder) ImageURLWithDetail(url string, detail ImageDetail) *MessageBuilder {
	img := NewImageURL(url)
	img.Detail = detail
	m.parts = append(m.parts, img)
	return m
}

// ImageFileID adds an image by file ID from the Files API.
func (m *MessageBuilder) ImageFileID(fileID string) *MessageBuilder {
	m.parts = append(m.parts, NewImageFileID(fileID))
	return m
}

// ImageData adds inline image bytes.
func (m *MessageBuilder) ImageData(mimeType string, data []byte) *MessageBuilder {
	m.parts = append(m.parts, NewImageData(mimeType, data))
	return m
}

// FileID adds a file by file ID from the Files API.
func (m *MessageBuilder) FileID(fileID string) *MessageBuilder {
	m.parts = append(m.parts, NewFileID(fileID))
	return m
}

// FileData adds inline file bytes.
func (m *MessageBuilder) FileData(filename, mimeType string, data []byte) *MessageBuilder {
	m.parts = append(m.parts, NewFileData(filename, mimeType, data))
	return m
}

// Done completes the message and returns to the ResponseBuilder.
func (m *MessageBuilder) Done() *ResponseBuilder {
	m.parent.req.Input = append(m.parent.req.Input, Message{
		Role:    m.role,
		Content: m.parts,
	})
	return m.parent
}

// UserWithImageURL adds a user message with text and an image URL.
func (b *ResponseBuilder) UserWithImageURL(text, imageURL string) *ResponseBuilder {
	return b.UserMultimodal().
		Text(text).
		ImageURL(imageURL).
		Done()
}

// UserWithFileID adds a user message with text and a file ID.
func (b *ResponseBuilder) UserWithFileID(text, fileID string) *ResponseBuilder {
	return b.UserMultimodal().
		Text(text).
		FileID(fileID).
		Done()
}
