package core

import (
	"context"
	"sync"
)

// Conversation chains turns through previous_response_id so the server
// keeps the history. Only the new turn's input is sent each time.
// Conversation is safe for concurrent use; turns are serialized.
type Conversation struct {
	client *Client
	model  string
	system string

	mu     sync.Mutex
	lastID string
	turns  int
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithInstructions sets instructions sent with every turn.
func WithInstructions(system string) ConversationOption {
	return func(c *Conversation) {
		c.system = system
	}
}

// ResumeFrom continues an existing server-side conversation.
func ResumeFrom(responseID string) ConversationOption {
	return func(c *Conversation) {
		c.lastID = responseID
	}
}

// NewConversation creates a conversation against the given deployment.
func NewConversation(client *Client, model string, opts ...ConversationOption) *Conversation {
	c := &Conversation{client: client, model: model}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send sends a user message and returns the assistant's response.
func (c *Conversation) Send(ctx context.Context, text string) (*Envelope[*Response], error) {
	return c.SendMessages(ctx, UserMessage(text))
}

// SendMessages sends arbitrary input items as the next turn, for example
// tool outputs answering the previous turn's function calls.
func (c *Conversation) SendMessages(ctx context.Context, msgs ...Message) (*Envelope[*Response], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &Request{
		Model:              c.model,
		Input:              msgs,
		Instructions:       c.system,
		PreviousResponseID: c.lastID,
	}
	env, err := c.client.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	c.lastID = env.Payload.ID
	c.turns++
	return env, nil
}

// LastResponseID returns the id that the next turn will chain from.
func (c *Conversation) LastResponseID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID
}

// Turns returns the number of completed turns.
func (c *Conversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

// Reset forgets the chain; the next turn starts a new conversation.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastID = ""
	c.turns = 0
}
