package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatRequest describes a single chat completion.
type ChatRequest struct {
	Messages []Message
	// JSON asks the provider to return a single JSON object.
	JSON bool
	// Temperature is left to the provider default when nil.
	Temperature *float32
}

// ChatClient produces chat completions.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder turns texts into embedding vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Client is a provider offering both chat completions and embeddings.
type Client interface {
	ChatClient
	Embedder
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM not configured: OPENAI_API_KEY is not set")

// PlaceholderClient stands in when no provider credentials are configured.
type PlaceholderClient struct{}

// Chat returns ErrNotConfigured.
func (PlaceholderClient) Chat(context.Context, ChatRequest) (string, error) {
	return "", ErrNotConfigured
}

// Embed returns ErrNotConfigured.
func (PlaceholderClient) Embed(context.Context, []string) ([][]float64, error) {
	return nil, ErrNotConfigured
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Temperature returns a pointer for ChatRequest.Temperature.
func Temperature(v float32) *float32 {
	return &v
}
