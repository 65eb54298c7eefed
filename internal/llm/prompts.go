package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/compare_system.txt
	promptCompareSystem string
	//go:embed prompts/compare_user.txt
	promptCompareUser string
	//go:embed prompts/agent_system.txt
	promptAgentSystem string
	//go:embed prompts/router_system.txt
	promptRouterSystem string
	//go:embed prompts/tool_choice.txt
	promptToolChoice string
	//go:embed prompts/tool_routing.txt
	promptToolRouting string
	//go:embed prompts/synthesize.txt
	promptSynthesize string
	//go:embed prompts/text_qa.txt
	promptTextQA string
	//go:embed prompts/summary.txt
	promptSummary string
)

const (
	PromptCompareSystem = "compare_system"
	PromptCompareUser   = "compare_user"
	PromptAgentSystem   = "agent_system"
	PromptRouterSystem  = "router_system"
	PromptToolChoice    = "tool_choice"
	PromptToolRouting   = "tool_routing"
	PromptSynthesize    = "synthesize"
	PromptTextQA        = "text_qa"
	PromptSummary       = "summary"
)

// PromptTemplate returns the template text and whether the name was recognized.
func PromptTemplate(name string) (string, bool) {
	switch name {
	case PromptCompareSystem:
		return promptCompareSystem, true
	case PromptCompareUser:
		return promptCompareUser, true
	case PromptAgentSystem:
		return promptAgentSystem, true
	case PromptRouterSystem:
		return promptRouterSystem, true
	case PromptToolChoice:
		return promptToolChoice, true
	case PromptToolRouting:
		return promptToolRouting, true
	case PromptSynthesize:
		return promptSynthesize, true
	case PromptTextQA:
		return promptTextQA, true
	case PromptSummary:
		return promptSummary, true
	default:
		return "", false
	}
}

// RenderPrompt fills {{KEY}} placeholders of the named template. Substituted values are
// never rescanned, so document text containing placeholder syntax is left alone.
func RenderPrompt(name string, vars map[string]string) string {
	tmpl, ok := PromptTemplate(name)
	if !ok {
		return ""
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
