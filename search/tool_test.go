package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/chatagent/agentloop"
)

func TestWebSearchToolInvoke(t *testing.T) {
	p := &mockProvider{name: "mock", results: []Result{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go language."},
		{Title: "Tour", URL: "https://go.dev/tour"},
	}}
	mgr := NewManager("mock")
	mgr.Register(p)
	tool := NewWebSearchTool(mgr, 0)

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"golang"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"snippet":"The Go language.","title":"Go","link":"https://go.dev"},
		{"snippet":"","title":"Tour","link":"https://go.dev/tour"}
	]`, out)
	assert.Equal(t, []string{"golang"}, p.queries)
	assert.Equal(t, DefaultMaxResults, p.opts[0].Count)
}

func TestWebSearchToolNoResults(t *testing.T) {
	mgr := NewManager("mock")
	mgr.Register(&mockProvider{name: "mock"})

	out, err := NewWebSearchTool(mgr, 3).Invoke(context.Background(), json.RawMessage(`{"query":"zzz"}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestWebSearchToolRequiresQuery(t *testing.T) {
	mgr := NewManager("mock")
	p := &mockProvider{name: "mock"}
	mgr.Register(p)
	tool := NewWebSearchTool(mgr, 5)

	for _, args := range []string{`{}`, `{"query":""}`, `{"query":42}`} {
		_, err := tool.Invoke(context.Background(), json.RawMessage(args))
		assert.Error(t, err, args)
	}
	_, err := tool.Invoke(context.Background(), json.RawMessage(`nope`))
	assert.Error(t, err)
	assert.Empty(t, p.queries)
}

func TestWebSearchToolRegisters(t *testing.T) {
	tool := NewWebSearchTool(NewManager("mock"), 5)
	reg, err := agentloop.NewToolRegistry(tool)
	require.NoError(t, err)

	defs := reg.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "web_search", defs[0].Name)
	assert.Equal(t, []string{"query"}, defs[0].Parameters["required"])
}
