package rag

import (
	"context"
	"strings"
	"sync"

	"insurease-backend/internal/llm"
)

var vocabulary = []string{"vand", "brand", "bil", "tyveri", "pris"}

// fakeClient embeds texts as keyword counts and answers chats through reply.
type fakeClient struct {
	mu       sync.Mutex
	embedded []string
	chats    []llm.ChatRequest
	reply    func(req llm.ChatRequest) (string, error)
}

func (f *fakeClient) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.embedded = append(f.embedded, texts...)
	f.mu.Unlock()
	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float64, len(vocabulary)+1)
		for j, w := range vocabulary {
			vec[j] = float64(strings.Count(lower, w))
		}
		vec[len(vocabulary)] = 0.01
		out[i] = vec
	}
	return out, nil
}

func (f *fakeClient) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	f.mu.Unlock()
	if f.reply == nil {
		return "ok", nil
	}
	return f.reply(req)
}

func (f *fakeClient) embedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.embedded)
}

func (f *fakeClient) chatLog() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.chats...)
}

func lastUser(req llm.ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func systemOf(req llm.ChatRequest) string {
	if len(req.Messages) > 0 && req.Messages[0].Role == llm.RoleSystem {
		return req.Messages[0].Content
	}
	return ""
}
