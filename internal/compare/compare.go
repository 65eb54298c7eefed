package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"insurease-backend/internal/extract"
	"insurease-backend/internal/llm"
	"insurease-backend/internal/shared/storage/policystore"
	"insurease-backend/internal/shared/telemetry"
)

// DefaultMaxChars bounds each policy excerpt sent to the model.
const DefaultMaxChars = 50000

var errInvalidID = errors.New("policy must be given as <company>/<policy>")

// LoadError reports a policy that could not be read or extracted.
type LoadError struct {
	// File is the policy identifier with its .pdf extension.
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("Error loading policy %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CompletionError reports a failed chat completion.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("Error during policy comparison: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Service compares two policies with one chat completion over their full text.
type Service struct {
	Text     extract.Source
	Chat     llm.ChatClient
	MaxChars int
}

func NewService(text extract.Source, chat llm.ChatClient, maxChars int) *Service {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{Text: text, Chat: chat, MaxChars: maxChars}
}

type document struct {
	name string
	text string
}

// Compare answers query about policy1 and policy2, each given as "<company>/<policy>".
// The returned text is the model's reply, unchanged.
func (s *Service) Compare(ctx context.Context, policy1, policy2, query string) (string, error) {
	doc1, err := s.load(ctx, policy1)
	if err != nil {
		return "", err
	}
	doc2, err := s.load(ctx, policy2)
	if err != nil {
		return "", err
	}

	system := llm.RenderPrompt(llm.PromptCompareSystem, map[string]string{
		"POLICY1": doc1.name,
		"POLICY2": doc2.name,
		"QUERY":   query,
	})
	user := llm.RenderPrompt(llm.PromptCompareUser, map[string]string{
		"POLICY1": doc1.name,
		"POLICY2": doc2.name,
		"TEXT1":   doc1.text,
		"TEXT2":   doc2.text,
	})

	start := time.Now()
	answer, err := s.Chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{llm.System(system), llm.User(user)},
	})
	if err != nil {
		return "", &CompletionError{Err: err}
	}
	telemetry.Info("compare.complete", map[string]any{
		"policy1":     doc1.name,
		"policy2":     doc2.name,
		"chars1":      len([]rune(doc1.text)),
		"chars2":      len([]rune(doc2.text)),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return answer, nil
}

func (s *Service) load(ctx context.Context, id string) (document, error) {
	file := strings.TrimSpace(id) + policystore.Extension
	company, policy, ok := splitID(id)
	if !ok {
		return document{}, &LoadError{File: file, Err: errInvalidID}
	}
	text, err := s.Text(ctx, company, policy)
	if err != nil {
		return document{}, &LoadError{File: file, Err: err}
	}
	return document{name: policy, text: extract.Truncate(text, s.MaxChars)}, nil
}

func splitID(id string) (string, string, bool) {
	company, policy, ok := strings.Cut(strings.TrimSpace(id), "/")
	if !ok || company == "" || policy == "" || strings.Contains(policy, "/") {
		return "", "", false
	}
	return company, policy, true
}
