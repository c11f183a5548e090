package agentloop

import (
	"fmt"
	"strings"
	"time"
)

// systemPromptDateLayout renders e.g. "Monday, October 14, 2026 09:05".
const systemPromptDateLayout = "Monday, January 02, 2006 15:04"

// promptRules close every preamble.
var promptRules = []string{
	"You may ONLY call the tools listed above. Never invent or hallucinate tool names.",
	"If search results contain URLs, summarise the information in them. Do NOT try to open or fetch URLs.",
	"If you cannot answer from the search results, say so honestly.",
}

// BuildSystemPrompt renders the preamble for one attempt: the current UTC
// time, one line per registered tool in registry order, and the usage rules.
// It is rebuilt for every attempt so the date never goes stale.
func BuildSystemPrompt(registry *ToolRegistry, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Today is %s UTC.\n\n", now.UTC().Format(systemPromptDateLayout))
	sb.WriteString("You are a helpful assistant with access to the following tools ONLY:\n")
	for _, t := range registry.List() {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name(), t.Description())
	}
	sb.WriteString("\nIMPORTANT RULES:\n")
	for i, rule := range promptRules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, rule)
	}
	return strings.TrimRight(sb.String(), "\n")
}
