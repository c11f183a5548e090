package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	go_openai "github.com/sashabaranov/go-openai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIAdapter talks to any OpenAI-compatible chat completions endpoint.
// It serves both the LiteLLM proxy and Groq.
type OpenAIAdapter struct {
	name   string
	client *go_openai.Client
}

// OpenAIAdapterOption configures an OpenAIAdapter.
type OpenAIAdapterOption func(*go_openai.ClientConfig)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) OpenAIAdapterOption {
	return func(c *go_openai.ClientConfig) {
		c.HTTPClient = hc
	}
}

// NewOpenAIAdapter creates an adapter for the endpoint at baseURL. An empty
// baseURL keeps the go-openai default.
func NewOpenAIAdapter(name, baseURL, apiKey string, opts ...OpenAIAdapterOption) *OpenAIAdapter {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &OpenAIAdapter{
		name:   name,
		client: go_openai.NewClientWithConfig(config),
	}
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Complete sends a chat completion request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	ccr, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, a.translateError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			SDKError: SDKError{Message: "response contained no choices"},
			Provider: a.name,
		}
	}

	return a.buildResponse(resp), nil
}

func (a *OpenAIAdapter) translateRequest(req Request) (go_openai.ChatCompletionRequest, error) {
	ccr := go_openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]go_openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	if req.Temperature != nil {
		ccr.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		ccr.MaxTokens = *req.MaxTokens
	}

	for _, msg := range req.Messages {
		m, err := translateMessage(msg)
		if err != nil {
			return ccr, err
		}
		ccr.Messages = append(ccr.Messages, m)
	}

	for _, td := range req.ToolDefs {
		params := td.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		ccr.Tools = append(ccr.Tools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  params,
			},
		})
	}

	if req.ToolChoice != nil && len(ccr.Tools) > 0 {
		switch req.ToolChoice.Mode {
		case "auto", "none", "required":
			ccr.ToolChoice = req.ToolChoice.Mode
		case "named":
			ccr.ToolChoice = go_openai.ToolChoice{
				Type:     go_openai.ToolTypeFunction,
				Function: go_openai.ToolFunction{Name: req.ToolChoice.ToolName},
			}
		default:
			return ccr, &InvalidRequestError{ProviderError: ProviderError{
				SDKError: SDKError{Message: fmt.Sprintf("unsupported tool choice %q", req.ToolChoice.Mode)},
				Provider: a.name,
			}}
		}
	}

	return ccr, nil
}

func translateMessage(msg Message) (go_openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case RoleSystem:
		return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: msg.TextContent()}, nil
	case RoleUser:
		return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: msg.TextContent()}, nil
	case RoleAssistant:
		m := go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: msg.TextContent()}
		for _, tc := range msg.ToolCalls() {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			m.ToolCalls = append(m.ToolCalls, go_openai.ToolCall{
				ID:       tc.ID,
				Type:     go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{Name: tc.Name, Arguments: args},
			})
		}
		return m, nil
	case RoleTool:
		tr := msg.ToolResult()
		if tr == nil {
			return go_openai.ChatCompletionMessage{}, &InvalidRequestError{ProviderError: ProviderError{
				SDKError: SDKError{Message: "tool message without a tool result"},
			}}
		}
		return go_openai.ChatCompletionMessage{
			Role:       go_openai.ChatMessageRoleTool,
			Content:    tr.Content,
			ToolCallID: tr.ToolCallID,
		}, nil
	default:
		return go_openai.ChatCompletionMessage{}, &InvalidRequestError{ProviderError: ProviderError{
			SDKError: SDKError{Message: fmt.Sprintf("unsupported role %q", msg.Role)},
		}}
	}
}

func (a *OpenAIAdapter) buildResponse(resp go_openai.ChatCompletionResponse) *Response {
	choice := resp.Choices[0]

	var content []ContentPart
	if choice.Message.Content != "" {
		content = append(content, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			// Keep malformed arguments inspectable by the tool as a JSON string.
			args, _ = json.Marshal(tc.Function.Arguments)
		}
		content = append(content, ToolCallPart(tc.ID, tc.Function.Name, args))
	}

	out := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.name,
		Message:  Message{Role: RoleAssistant, Content: content},
		FinishReason: FinishReason{
			Reason: normalizeFinishReason(string(choice.FinishReason)),
			Raw:    string(choice.FinishReason),
		},
	}
	if u := resp.Usage; u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
		out.Usage = &Usage{
			InputTokens:  u.PromptTokens,
			OutputTokens: u.CompletionTokens,
			TotalTokens:  u.TotalTokens,
		}
	}
	return out
}

func normalizeFinishReason(raw string) string {
	switch raw {
	case "stop", "length", "tool_calls", "content_filter":
		return raw
	case "function_call":
		return "tool_calls"
	case "":
		return "stop"
	default:
		return "other"
	}
}

// translateError converts go-openai errors into the unified error hierarchy.
func (a *OpenAIAdapter) translateError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: err}}
	}

	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return ErrorFromStatusCode(apiErr.HTTPStatusCode, apiErr.Message, a.name, code, nil)
	}

	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		msg := err.Error()
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return ErrorFromStatusCode(reqErr.HTTPStatusCode, msg, a.name, "", nil)
	}

	return &NetworkError{SDKError: SDKError{Message: fmt.Sprintf("%s request failed", a.name), Cause: err}}
}
