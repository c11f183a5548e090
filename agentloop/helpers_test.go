package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/martinemde/chatagent/unifiedllm"
)

// scriptedModel replays a fixed sequence of steps; the last step repeats.
type scriptedModel struct {
	mu       sync.Mutex
	steps    []func(ctx context.Context, req ModelRequest) (*ModelReply, error)
	requests []ModelRequest
}

func newScriptedModel(steps ...func(ctx context.Context, req ModelRequest) (*ModelReply, error)) *scriptedModel {
	return &scriptedModel{steps: steps}
}

func (m *scriptedModel) Generate(ctx context.Context, req ModelRequest) (*ModelReply, error) {
	m.mu.Lock()
	history := make([]Turn, len(req.History))
	copy(history, req.History)
	req.History = history
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	step := m.steps[i]
	m.mu.Unlock()
	return step(ctx, req)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *scriptedModel) request(i int) ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func text(content string) func(context.Context, ModelRequest) (*ModelReply, error) {
	return func(context.Context, ModelRequest) (*ModelReply, error) {
		return &ModelReply{Turn: AssistantTurn{Content: content}}, nil
	}
}

func textWithUsage(content string, in, out int) func(context.Context, ModelRequest) (*ModelReply, error) {
	return func(context.Context, ModelRequest) (*ModelReply, error) {
		return &ModelReply{
			Turn:  AssistantTurn{Content: content},
			Usage: &unifiedllm.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		}, nil
	}
}

func calls(cs ...unifiedllm.ToolCall) func(context.Context, ModelRequest) (*ModelReply, error) {
	return func(context.Context, ModelRequest) (*ModelReply, error) {
		return &ModelReply{Turn: AssistantTurn{ToolCalls: cs}}, nil
	}
}

func fail(err error) func(context.Context, ModelRequest) (*ModelReply, error) {
	return func(context.Context, ModelRequest) (*ModelReply, error) {
		return nil, err
	}
}

func call(id, name, query string) unifiedllm.ToolCall {
	args, _ := json.Marshal(map[string]string{"query": query})
	return unifiedllm.ToolCall{ID: id, Name: name, Arguments: args}
}

func toolNotDeclared(name string) *unifiedllm.ToolNotDeclaredError {
	return &unifiedllm.ToolNotDeclaredError{
		ProviderError: unifiedllm.ProviderError{
			SDKError: unifiedllm.SDKError{Message: "attempted to call tool '" + name + "' which was not in request.tools"},
			Provider: "groq",
		},
		ToolName: name,
	}
}

// echoTool answers with a fixed prefix and the query it received.
func echoTool(name string) *FuncTool {
	return &FuncTool{
		ToolName:        name,
		ToolDescription: "echoes " + name,
		Schema:          map[string]any{"type": "object"},
		Fn: func(_ context.Context, args json.RawMessage) (string, error) {
			m, err := ParseToolArguments(args)
			if err != nil {
				return "", err
			}
			q, _ := GetStringArg(m, "query")
			return fmt.Sprintf("%s result for %s", name, q), nil
		},
	}
}

// recordingObserver keeps a log of notifications.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recordingObserver) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingObserver) ModelStart(_ context.Context, model string, turns int) {
	r.add(fmt.Sprintf("model_start %s %d", model, turns))
}

func (r *recordingObserver) ModelEnd(_ context.Context, usage *unifiedllm.Usage) {
	if usage == nil {
		r.add("model_end")
		return
	}
	r.add(fmt.Sprintf("model_end %d/%d", usage.InputTokens, usage.OutputTokens))
}

func (r *recordingObserver) ToolStart(_ context.Context, tool, query string) {
	r.add(fmt.Sprintf("tool_start %s %s", tool, query))
}

func (r *recordingObserver) ToolEnd(_ context.Context, chars int, preview string) {
	r.add(fmt.Sprintf("tool_end %d %s", chars, preview))
}

func (r *recordingObserver) ToolError(_ context.Context, err error) {
	r.add("tool_error")
}
