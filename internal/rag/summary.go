package rag

import (
	"context"
	"strings"
	"unicode/utf8"

	"insurease-backend/internal/llm"
)

// DefaultSummaryBatchChars bounds the context of one summarizing completion.
const DefaultSummaryBatchChars = 12000

// emptyResponse is returned by tools that have no text to work with.
const emptyResponse = "Empty Response"

// SummaryIndex answers over every chunk of a document. Chunks are answered in batches
// and the partial answers are combined until one answer remains.
type SummaryIndex struct {
	Chunks     []string
	BatchChars int
}

func (s *SummaryIndex) Answer(ctx context.Context, chat llm.ChatClient, question string) (string, error) {
	texts := s.Chunks
	if len(texts) == 0 {
		return emptyResponse, nil
	}
	limit := s.BatchChars
	if limit <= 0 {
		limit = DefaultSummaryBatchChars
	}
	for {
		batches := packBatches(texts, limit)
		answers := make([]string, 0, len(batches))
		for _, batch := range batches {
			answer, err := complete(ctx, chat, "", llm.RenderPrompt(llm.PromptSummary, map[string]string{
				"CONTEXT": strings.Join(batch, "\n\n"),
				"QUERY":   question,
			}))
			if err != nil {
				return "", err
			}
			answers = append(answers, answer)
		}
		if len(answers) == 1 {
			return answers[0], nil
		}
		texts = answers
	}
}

// packBatches groups texts into batches of at most limit characters. Any batch holds at
// least two texts when more than one remains, so every round strictly shrinks the input.
func packBatches(texts []string, limit int) [][]string {
	var (
		out    [][]string
		cur    []string
		curLen int
	)
	for _, t := range texts {
		n := utf8.RuneCountInString(t)
		if len(cur) >= 2 && curLen+n > limit {
			out = append(out, cur)
			cur, curLen = nil, 0
		}
		cur = append(cur, t)
		curLen += n
	}
	if len(cur) > 0 {
		if len(cur) == 1 && len(out) > 0 {
			out[len(out)-1] = append(out[len(out)-1], cur[0])
		} else {
			out = append(out, cur)
		}
	}
	return out
}

// complete runs one deterministic chat completion.
func complete(ctx context.Context, chat llm.ChatClient, system, user string) (string, error) {
	msgs := make([]llm.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, llm.System(system))
	}
	msgs = append(msgs, llm.User(user))
	return chat.Chat(ctx, llm.ChatRequest{Messages: msgs, Temperature: llm.Temperature(0)})
}
