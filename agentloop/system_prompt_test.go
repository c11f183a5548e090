package agentloop

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt(t *testing.T) {
	reg, err := NewToolRegistry(echoTool("web_search"), echoTool("calculator"))
	require.NoError(t, err)
	now := time.Date(2026, time.October, 14, 9, 5, 0, 0, time.UTC)

	prompt := BuildSystemPrompt(reg, now)
	lines := strings.Split(prompt, "\n")

	assert.Equal(t, "Today is Wednesday, October 14, 2026 09:05 UTC.", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "You are a helpful assistant with access to the following tools ONLY:", lines[2])
	assert.Equal(t, "- web_search: echoes web_search", lines[3])
	assert.Equal(t, "- calculator: echoes calculator", lines[4])
	assert.Equal(t, "", lines[5])
	assert.Equal(t, "IMPORTANT RULES:", lines[6])
	assert.True(t, strings.HasPrefix(lines[7], "1. You may ONLY call the tools listed above."))
	assert.True(t, strings.HasPrefix(lines[8], "2. If search results contain URLs"))
	assert.True(t, strings.HasPrefix(lines[9], "3. If you cannot answer"))
	assert.Len(t, lines, 10)
}

func TestBuildSystemPromptConvertsToUTC(t *testing.T) {
	reg, _ := NewToolRegistry()
	loc := time.FixedZone("UTC-7", -7*60*60)
	now := time.Date(2026, time.October, 13, 23, 30, 0, 0, loc)

	prompt := BuildSystemPrompt(reg, now)
	assert.True(t, strings.HasPrefix(prompt, "Today is Wednesday, October 14, 2026 06:30 UTC."))
}

func TestBuildSystemPromptNoTools(t *testing.T) {
	reg, _ := NewToolRegistry()
	prompt := BuildSystemPrompt(reg, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, prompt, "Today is Monday, January 05, 2026 00:00 UTC.")
	assert.Contains(t, prompt, "tools ONLY:\n\nIMPORTANT RULES:")
	assert.NotContains(t, prompt, "\n- ")
}
