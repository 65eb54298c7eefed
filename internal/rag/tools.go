package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"insurease-backend/internal/llm"
)

// Tool is a named capability an agent can choose to call.
type Tool struct {
	Name        string
	Description string
	Call        func(ctx context.Context, input string) (string, error)
}

// toolID turns a company and policy into the identifier used in tool names.
// Characters outside [A-Za-z0-9_-] become underscores.
func toolID(company, policy string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, company+"_"+policy)
}

// uniqueName returns name, or name with the lowest numeric suffix not yet in taken,
// and records the result.
func uniqueName(taken map[string]bool, name string) string {
	out := name
	for n := 2; taken[out]; n++ {
		out = fmt.Sprintf("%s_%d", name, n)
	}
	taken[out] = true
	return out
}

func vectorTool(company, policy string, idx *VectorIndex, client llm.Client, topK int) Tool {
	return Tool{
		Name: "vector_tool_" + toolID(company, policy),
		Description: fmt.Sprintf("Useful for questions related to specific aspects of the %s %s insurance policy "+
			"(e.g. coverage details, exclusions, premiums, or more).", company, policy),
		Call: func(ctx context.Context, input string) (string, error) {
			matches, err := idx.Query(ctx, client, input, topK)
			if err != nil {
				return "", err
			}
			if len(matches) == 0 {
				return emptyResponse, nil
			}
			texts := make([]string, len(matches))
			for i, m := range matches {
				texts[i] = m.Text
			}
			return complete(ctx, client, "", llm.RenderPrompt(llm.PromptTextQA, map[string]string{
				"CONTEXT": strings.Join(texts, "\n\n"),
				"QUERY":   input,
			}))
		},
	}
}

func summaryTool(company, policy string, idx *SummaryIndex, chat llm.ChatClient) Tool {
	return Tool{
		Name: "summary_tool_" + toolID(company, policy),
		Description: fmt.Sprintf("Useful for any requests that require a holistic summary of EVERYTHING about the %s %s "+
			"insurance policy. For questions about more specific sections, please use the vector_tool.", company, policy),
		Call: func(ctx context.Context, input string) (string, error) {
			return idx.Answer(ctx, chat, input)
		},
	}
}

func describeTools(tools []Tool) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, strings.TrimSpace(t.Description))
	}
	return b.String()
}

// decodeJSON parses a model reply that should hold one JSON object, tolerating a
// surrounding markdown code fence.
func decodeJSON(reply string, v any) error {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return json.Unmarshal([]byte(s), v)
}
