package llm

import (
	"strings"
	"testing"
)

func TestPromptTemplatesEmbedded(t *testing.T) {
	for _, name := range []string{
		PromptCompareSystem, PromptCompareUser, PromptAgentSystem, PromptRouterSystem,
		PromptToolChoice, PromptToolRouting, PromptSynthesize, PromptTextQA, PromptSummary,
	} {
		tmpl, ok := PromptTemplate(name)
		if !ok || strings.TrimSpace(tmpl) == "" {
			t.Fatalf("template %s missing", name)
		}
	}
	if _, ok := PromptTemplate("nope"); ok {
		t.Fatalf("unknown template must not resolve")
	}
}

func TestRenderPromptDoesNotRescanValues(t *testing.T) {
	out := RenderPrompt(PromptCompareUser, map[string]string{
		"POLICY1": "Bil",
		"POLICY2": "Hus",
		"TEXT1":   "literal {{POLICY2}} text",
		"TEXT2":   "second",
	})
	if !strings.Contains(out, "Policy 1 (Bil) content:\nliteral {{POLICY2}} text") {
		t.Fatalf("unexpected render:\n%s", out)
	}
	if !strings.Contains(out, "Policy 2 (Hus) content:\nsecond") {
		t.Fatalf("unexpected render:\n%s", out)
	}
}

func TestRenderAgentSystem(t *testing.T) {
	out := RenderPrompt(PromptAgentSystem, map[string]string{"COMPANY": "Tryg", "POLICY": "Bil"})
	want := "You are a specialized agent designed to answer queries about the Tryg Bil insurance policy."
	if !strings.HasPrefix(out, want) {
		t.Fatalf("unexpected render %q", out)
	}
}
