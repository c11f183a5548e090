package search

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/martinemde/chatagent/agentloop"
)

// ToolName is the name the model calls the search tool by.
const ToolName = "web_search"

const toolDescription = "Search the web. Useful for questions about current events " +
	"or facts you are unsure of. Input should be a search query."

// WebSearchTool exposes a Manager to the agent as the web_search tool.
type WebSearchTool struct {
	manager    *Manager
	maxResults int
}

var _ agentloop.Tool = (*WebSearchTool)(nil)

// NewWebSearchTool returns the tool. maxResults <= 0 means DefaultMaxResults.
func NewWebSearchTool(manager *Manager, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &WebSearchTool{manager: manager, maxResults: maxResults}
}

func (t *WebSearchTool) Name() string        { return ToolName }
func (t *WebSearchTool) Description() string { return toolDescription }

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
		},
		"required": []string{"query"},
	}
}

// toolResult is one entry of the list handed back to the model.
type toolResult struct {
	Snippet string `json:"snippet"`
	Title   string `json:"title"`
	Link    string `json:"link"`
}

// Invoke runs the search and returns the results as a JSON array.
func (t *WebSearchTool) Invoke(ctx context.Context, arguments json.RawMessage) (string, error) {
	args, err := agentloop.ParseToolArguments(arguments)
	if err != nil {
		return "", err
	}
	query, _ := agentloop.GetStringArg(args, "query")
	if query == "" {
		return "", errors.New("web_search: query is required")
	}

	results, err := t.manager.Search(ctx, query, Options{Count: t.maxResults})
	if err != nil {
		return "", err
	}

	out := make([]toolResult, len(results))
	for i, r := range results {
		out[i] = toolResult{Snippet: r.Snippet, Title: r.Title, Link: r.URL}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "web_search: encode results")
	}
	return string(data), nil
}
