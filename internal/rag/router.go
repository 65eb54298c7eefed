package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"insurease-backend/internal/llm"
	"insurease-backend/internal/shared/telemetry"
)

const (
	// DefaultToolRetrieveK caps the tools offered to the model per question. Above this
	// many documents the candidates are preselected by embedding similarity.
	DefaultToolRetrieveK = 8
	defaultConcurrency   = 4
	noToolResults        = "No tool provides information relevant to this question."
)

// Router is the top-level agent over all document agents.
type Router struct {
	agents    []*DocumentAgent
	tools     []Tool
	toolIndex *VectorIndex
	client    llm.Client
	retrieveK int
	parallel  int
}

// NewRouter builds the router. When there are more agents than retrieveK, the tool
// descriptions are embedded once for candidate preselection.
func NewRouter(ctx context.Context, agents []*DocumentAgent, client llm.Client, retrieveK int) (*Router, error) {
	if retrieveK <= 0 {
		retrieveK = DefaultToolRetrieveK
	}
	r := &Router{
		agents:    agents,
		client:    client,
		retrieveK: retrieveK,
		parallel:  defaultConcurrency,
	}
	taken := make(map[string]bool, len(agents))
	for _, a := range agents {
		tool := a.AsTool()
		tool.Name = uniqueName(taken, tool.Name)
		r.tools = append(r.tools, tool)
	}
	if len(r.tools) > retrieveK {
		descs := make([]string, len(r.tools))
		for i, t := range r.tools {
			descs[i] = t.Description
		}
		idx, err := BuildVectorIndex(ctx, client, descs)
		if err != nil {
			return nil, fmt.Errorf("index tool descriptions: %w", err)
		}
		r.toolIndex = idx
	}
	return r, nil
}

// Documents returns each company's indexed policies.
func (r *Router) Documents() map[string][]string {
	out := make(map[string][]string)
	for _, a := range r.agents {
		out[a.Company] = append(out[a.Company], a.Policy)
	}
	for _, policies := range out {
		sort.Strings(policies)
	}
	return out
}

// Tools returns the document tools in build order.
func (r *Router) Tools() []Tool {
	return append([]Tool(nil), r.tools...)
}

type toolRouting struct {
	Tools []string `json:"tools"`
}

// Answer routes question to the relevant document agents and synthesizes their answers.
func (r *Router) Answer(ctx context.Context, question string) (string, error) {
	candidates, err := r.candidates(ctx, question)
	if err != nil {
		return "", err
	}
	selected, err := r.selectTools(ctx, question, candidates)
	if err != nil {
		return "", err
	}

	results := make([]string, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, idx := range selected {
		g.Go(func() error {
			answer, err := r.tools[idx].Call(gctx, question)
			if err != nil {
				return err
			}
			results[i] = answer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, idx := range selected {
		fmt.Fprintf(&b, "### %s\n%s\n\n", r.tools[idx].Name, strings.TrimSpace(results[i]))
	}
	observations := strings.TrimSpace(b.String())
	if observations == "" {
		observations = noToolResults
	}
	names := make([]string, len(selected))
	for i, idx := range selected {
		names[i] = r.tools[idx].Name
	}
	telemetry.Info("rag.route", map[string]any{"tools": names, "candidates": len(candidates)})

	return complete(ctx, r.client, llm.RenderPrompt(llm.PromptRouterSystem, nil), llm.RenderPrompt(llm.PromptSynthesize, map[string]string{
		"QUERY":   question,
		"RESULTS": observations,
	}))
}

// candidates returns tool indexes to offer the model, including every tool whose
// company or policy the question names.
func (r *Router) candidates(ctx context.Context, question string) ([]int, error) {
	if len(r.tools) <= r.retrieveK || r.toolIndex == nil {
		all := make([]int, len(r.tools))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	matches, err := r.toolIndex.Query(ctx, r.client, question, r.retrieveK)
	if err != nil {
		return nil, fmt.Errorf("preselect tools: %w", err)
	}
	idx := make([]int, len(matches))
	for i, m := range matches {
		idx[i] = m.Position
	}
	return mergeIndexes(idx, r.mentioned(question)), nil
}

func (r *Router) selectTools(ctx context.Context, question string, candidates []int) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	offered := make([]Tool, len(candidates))
	for i, idx := range candidates {
		offered[i] = r.tools[idx]
	}
	system := llm.RenderPrompt(llm.PromptToolRouting, map[string]string{
		"SYSTEM": llm.RenderPrompt(llm.PromptRouterSystem, nil),
		"TOOLS":  describeTools(offered),
	})
	reply, err := r.client.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{llm.System(system), llm.User(question)},
		JSON:        true,
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		return nil, fmt.Errorf("route question: %w", err)
	}

	var chosen []int
	var routing toolRouting
	if err := decodeJSON(reply, &routing); err != nil {
		telemetry.Warn("rag.routing_invalid", map[string]any{"error": err})
	}
	for _, name := range routing.Tools {
		for _, idx := range candidates {
			if r.tools[idx].Name == strings.TrimSpace(name) {
				chosen = append(chosen, idx)
				break
			}
		}
	}
	return mergeIndexes(chosen, r.mentioned(question)), nil
}

// mentioned returns the tools whose company or policy name occurs in the question.
func (r *Router) mentioned(question string) []int {
	q := strings.ToLower(question)
	var out []int
	for i, a := range r.agents {
		if containsName(q, a.Company) || containsName(q, a.Policy) {
			out = append(out, i)
		}
	}
	return out
}

func containsName(lowerQuestion, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) < 3 {
		return false
	}
	return strings.Contains(lowerQuestion, name)
}

// mergeIndexes appends extra to base, dropping duplicates and keeping first occurrences.
func mergeIndexes(base, extra []int) []int {
	seen := make(map[int]bool, len(base)+len(extra))
	out := make([]int, 0, len(base)+len(extra))
	for _, list := range [][]int{base, extra} {
		for _, i := range list {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}
