package agentloop

import (
	"context"
	"fmt"

	"github.com/martinemde/chatagent/unifiedllm"
)

// ModelRequest is one model call: the history so far and the tools the model
// may call.
type ModelRequest struct {
	Model       string
	Temperature *float64
	History     []Turn
	Tools       []unifiedllm.ToolDefinition
}

// ModelReply is the model's answer. Usage is nil when not reported.
type ModelReply struct {
	Turn  AssistantTurn
	Usage *unifiedllm.Usage
}

// ModelClient produces the next assistant turn. Errors are returned as the
// boundary produced them; a *unifiedllm.ToolNotDeclaredError marks a call to
// a tool that was not offered.
type ModelClient interface {
	Generate(ctx context.Context, req ModelRequest) (*ModelReply, error)
}

// LLMModelClient implements ModelClient over a unifiedllm.Client, resolving
// display names through a catalog.
type LLMModelClient struct {
	client             *unifiedllm.Client
	catalog            *unifiedllm.Catalog
	defaultTemperature float64
}

// NewLLMModelClient wires a client and catalog. defaultTemperature is sent
// when a request carries none, or carries zero.
func NewLLMModelClient(client *unifiedllm.Client, catalog *unifiedllm.Catalog, defaultTemperature float64) *LLMModelClient {
	return &LLMModelClient{client: client, catalog: catalog, defaultTemperature: defaultTemperature}
}

// Generate resolves the model and performs one completion.
func (c *LLMModelClient) Generate(ctx context.Context, req ModelRequest) (*ModelReply, error) {
	info, ok := c.catalog.Lookup(req.Model)
	if !ok {
		return nil, &unifiedllm.ConfigurationError{SDKError: unifiedllm.SDKError{
			Message: fmt.Sprintf("unknown model %q", req.Model),
		}}
	}

	temperature := c.defaultTemperature
	if req.Temperature != nil && *req.Temperature != 0 {
		temperature = *req.Temperature
	}

	llmReq := unifiedllm.Request{
		Model:       info.ID,
		Provider:    info.Provider,
		Messages:    ConvertHistoryToMessages(req.History),
		ToolDefs:    req.Tools,
		Temperature: &temperature,
	}
	if len(req.Tools) > 0 {
		llmReq.ToolChoice = &unifiedllm.ToolChoice{Mode: "auto"}
	}

	resp, err := c.client.Complete(ctx, llmReq)
	if err != nil {
		return nil, err
	}

	return &ModelReply{
		Turn: AssistantTurn{
			Content:   resp.Text(),
			ToolCalls: resp.ToolCalls(),
		},
		Usage: resp.Usage,
	}, nil
}
