package unifiedllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter serves requests through a gollm.LLM. gollm keeps model and
// sampling options on the LLM value, so calls are serialized.
type GollmAdapter struct {
	name  string
	model string

	mu  sync.Mutex
	llm gollm.LLM
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmSettings)

type gollmSettings struct {
	name        string
	model       string
	temperature float64
	endpoint    string
}

// WithAdapterName sets the provider name the adapter answers to. It
// defaults to the gollm provider.
func WithAdapterName(name string) GollmAdapterOption {
	return func(s *gollmSettings) { s.name = name }
}

// WithModel sets the model used when a request names none.
func WithModel(model string) GollmAdapterOption {
	return func(s *gollmSettings) { s.model = model }
}

// WithTemperature sets the temperature used when a request sets none.
func WithTemperature(t float64) GollmAdapterOption {
	return func(s *gollmSettings) { s.temperature = t }
}

// WithEndpoint sets the base URL of a self-hosted ollama server. gollm's
// hosted providers use fixed URLs.
func WithEndpoint(url string) GollmAdapterOption {
	return func(s *gollmSettings) { s.endpoint = url }
}

// NewGollmAdapter creates an adapter for a gollm provider such as "openai",
// "groq" or "ollama". An empty apiKey leaves key lookup to gollm.
func NewGollmAdapter(provider, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	s := gollmSettings{name: provider, temperature: 0.7}
	for _, opt := range opts {
		opt(&s)
	}
	if s.model == "" {
		// First catalog entry served under this name.
		for _, m := range Models {
			if m.Provider == s.name {
				s.model = m.ID
				break
			}
		}
	}
	if s.model == "" {
		return nil, configError(fmt.Sprintf("no model configured for gollm provider %q", s.name))
	}

	config := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(s.model),
		gollm.SetTemperature(s.temperature),
		gollm.SetMaxTokens(4096),
		gollm.SetMaxRetries(0), // the agent owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if s.endpoint != "" {
		if provider != "ollama" {
			return nil, configError(fmt.Sprintf("gollm provider %q does not accept a custom endpoint", provider))
		}
		config = append(config, gollm.SetOllamaEndpoint(s.endpoint))
	}
	if apiKey != "" {
		config = append(config, gollm.SetAPIKey(apiKey))
	}
	llm, err := gollm.NewLLM(config...)
	if err != nil {
		return nil, &ConfigurationError{SDKError{
			Message: fmt.Sprintf("create gollm %s client", provider),
			Cause:   err,
		}}
	}
	return &GollmAdapter{name: s.name, model: s.model, llm: llm}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string { return a.name }

// Complete renders the conversation into one prompt and parses any tool
// calls gollm returns inline.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := gollmPrompt(req)

	a.mu.Lock()
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	text, err := a.llm.Generate(ctx, prompt)
	a.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil, &AbortError{SDKError{Message: a.name + " request cancelled", Cause: ctx.Err()}}
		}
		return nil, a.translateError(err)
	}
	return a.buildResponse(req, text), nil
}

// gollmPrompt flattens the conversation. gollm has no multi-turn message
// API, so earlier turns become labelled lines after the system prompt.
func gollmPrompt(req Request) *gollm.Prompt {
	var system, lines []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.TextContent())
		case RoleUser:
			lines = append(lines, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				lines = append(lines, "[Assistant]: "+text)
			}
			for _, tc := range msg.ToolCalls() {
				lines = append(lines, fmt.Sprintf("[Tool Call %s]: %s", tc.Name, tc.Arguments))
			}
		case RoleTool:
			if tr := msg.ToolResult(); tr != nil {
				label := "[Tool Result]: "
				if tr.IsError {
					label = "[Tool Error]: "
				}
				lines = append(lines, label+tr.Content)
			}
		}
	}

	var opts []gollm.PromptOption
	if s := strings.TrimSpace(strings.Join(system, "\n")); s != "" {
		opts = append(opts, gollm.WithSystemPrompt(s, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		opts = append(opts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, len(req.ToolDefs))
		for i, td := range req.ToolDefs {
			tools[i] = gollm.Tool{Type: "function", Function: gollm.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			}}
		}
		opts = append(opts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		opts = append(opts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}
	return gollm.NewPrompt(strings.Join(lines, "\n"), opts...)
}

// buildResponse splits generated text into prose and tool calls. gollm
// reports no token usage, so Usage stays nil.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}
	resp := &Response{
		ID:           "resp_" + uuid.NewString()[:8],
		Model:        model,
		Provider:     a.name,
		Message:      Message{Role: RoleAssistant},
		FinishReason: FinishReason{Reason: "stop", Raw: "stop"},
	}

	prose, calls := splitToolCalls(text)
	if prose != "" || len(calls) == 0 {
		resp.Message.Content = append(resp.Message.Content, TextPart(prose))
	}
	for i := range calls {
		resp.Message.Content = append(resp.Message.Content, ContentPart{Kind: ContentToolCall, ToolCall: &calls[i]})
	}
	if len(calls) > 0 {
		resp.FinishReason = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}
	return resp
}

// toolCallMarker opens the JSON array gollm emits for function calls.
const toolCallMarker = `[{"name"`

// splitToolCalls separates a trailing JSON array of {"name","arguments"}
// objects from the text before it. Text without a well-formed array comes
// back unchanged.
func splitToolCalls(text string) (string, []ToolCallData) {
	start := strings.Index(text, toolCallMarker)
	if start < 0 {
		return text, nil
	}
	var raw []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &raw); err != nil {
		return text, nil
	}

	calls := make([]ToolCallData, len(raw))
	for i, rc := range raw {
		args := rc.Arguments
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		calls[i] = ToolCallData{ID: "call_" + uuid.NewString()[:8], Name: rc.Name, Arguments: args, Type: "function"}
	}
	return strings.TrimSpace(text[:start]), calls
}

// gollmStatusRules recovers an HTTP status from gollm's error strings, which
// are the only form in which it surfaces provider failures.
var gollmStatusRules = []struct {
	status  int
	needles []string
}{
	{401, []string{"401", "unauthorized", "invalid api key"}},
	{403, []string{"403", "forbidden"}},
	{404, []string{"404", "not found"}},
	{429, []string{"429", "rate limit"}},
	{413, []string{"context length", "too many tokens"}},
	{500, []string{"500", "internal server"}},
	{408, []string{"timeout"}},
}

func (a *GollmAdapter) translateError(err error) error {
	msg := err.Error()
	if isToolRejection(msg, "") {
		return ErrorFromStatusCode(400, msg, a.name, "", nil)
	}
	lower := strings.ToLower(msg)
	for _, rule := range gollmStatusRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return ErrorFromStatusCode(rule.status, msg, a.name, "", nil)
			}
		}
	}
	return ErrorFromStatusCode(0, msg, a.name, "", nil)
}
