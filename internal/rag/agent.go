package rag

import (
	"context"
	"fmt"
	"strings"

	"insurease-backend/internal/llm"
	"insurease-backend/internal/shared/telemetry"
)

// DocumentAgent answers questions about one policy. Every answer comes from one of its tools.
type DocumentAgent struct {
	Company string
	Policy  string
	Tools   []Tool
	chat    llm.ChatClient
}

func NewDocumentAgent(company, policy string, vector *VectorIndex, summary *SummaryIndex, client llm.Client, topK int) *DocumentAgent {
	return &DocumentAgent{
		Company: company,
		Policy:  policy,
		Tools: []Tool{
			vectorTool(company, policy, vector, client, topK),
			summaryTool(company, policy, summary, client),
		},
		chat: client,
	}
}

type toolChoice struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// Answer lets the model pick a tool and returns that tool's answer. An unusable choice
// falls back to the first tool.
func (a *DocumentAgent) Answer(ctx context.Context, question string) (string, error) {
	system := llm.RenderPrompt(llm.PromptToolChoice, map[string]string{
		"SYSTEM": llm.RenderPrompt(llm.PromptAgentSystem, map[string]string{"COMPANY": a.Company, "POLICY": a.Policy}),
		"TOOLS":  describeTools(a.Tools),
	})
	reply, err := a.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{llm.System(system), llm.User(question)},
		JSON:        true,
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		return "", fmt.Errorf("agent %s %s: choose tool: %w", a.Company, a.Policy, err)
	}

	tool := a.Tools[0]
	input := question
	var choice toolChoice
	if err := decodeJSON(reply, &choice); err != nil {
		telemetry.Warn("rag.tool_choice_invalid", map[string]any{"agent": toolID(a.Company, a.Policy), "error": err})
	} else {
		for _, t := range a.Tools {
			if t.Name == strings.TrimSpace(choice.Tool) {
				tool = t
				break
			}
		}
		if in := strings.TrimSpace(choice.Input); in != "" {
			input = in
		}
	}

	answer, err := tool.Call(ctx, input)
	if err != nil {
		return "", fmt.Errorf("agent %s %s: %s: %w", a.Company, a.Policy, tool.Name, err)
	}
	telemetry.Info("rag.tool_call", map[string]any{"tool": tool.Name})
	return answer, nil
}

// AsTool exposes the agent to the router.
func (a *DocumentAgent) AsTool() Tool {
	return Tool{
		Name: "tool_" + toolID(a.Company, a.Policy),
		Description: fmt.Sprintf("This tool provides information about the %s %s insurance policy. Use "+
			"this tool for any questions specifically about the %s %s policy.", a.Company, a.Policy, a.Company, a.Policy),
		Call: a.Answer,
	}
}
