package unifiedllm

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind tags which field of a ContentPart is set.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ContentPart is one piece of a message: text, a tool call the model made,
// or the result of running one.
type ContentPart struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

// ToolCallData is a tool invocation as carried inside a message.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Type      string          `json:"type,omitempty"`
}

// ToolResultData is the textual output of a tool execution.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ToolCallPart creates a tool call ContentPart of type "function".
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{Kind: ContentToolCall, ToolCall: &ToolCallData{ID: id, Name: name, Arguments: args, Type: "function"}}
}

// Message is one entry of a conversation sent to or received from a model.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage builds a model reply. Empty text adds no text part, so a
// pure tool-call reply holds only the calls, in order.
func AssistantMessage(text string, calls ...ToolCall) Message {
	msg := Message{Role: RoleAssistant}
	if text != "" {
		msg.Content = append(msg.Content, TextPart(text))
	}
	for _, c := range calls {
		msg.Content = append(msg.Content, ToolCallPart(c.ID, c.Name, c.Arguments))
	}
	return msg
}

// ToolResultMessage answers the tool call with the given id.
func ToolResultMessage(toolCallID, content string, isError bool) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentPart{{
			Kind:       ContentToolResult,
			ToolResult: &ToolResultData{ToolCallID: toolCallID, Content: content, IsError: isError},
		}},
		ToolCallID: toolCallID,
	}
}

// TextContent joins the message's text parts.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, p := range m.Content {
		if p.Kind == ContentText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the message's tool calls in order.
func (m Message) ToolCalls() []ToolCallData {
	var out []ToolCallData
	for _, p := range m.Content {
		if p.Kind == ContentToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

// ToolResult returns the first tool result part, or nil.
func (m Message) ToolResult() *ToolResultData {
	for _, p := range m.Content {
		if p.Kind == ContentToolResult && p.ToolResult != nil {
			return p.ToolResult
		}
	}
	return nil
}

// ToolCall is a tool invocation requested by a model response.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition is what the model is told about a tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice controls whether the model may call tools. Mode is "auto",
// "none", "required" or "named"; ToolName is set only for "named".
type ToolChoice struct {
	Mode     string `json:"mode"`
	ToolName string `json:"tool_name,omitempty"`
}

// Request is the input to Complete.
type Request struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Provider    string           `json:"provider,omitempty"`
	ToolDefs    []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  *ToolChoice      `json:"tool_choice,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
}

// Declares reports whether a tool with the given name is part of the request.
func (r Request) Declares(name string) bool {
	for _, td := range r.ToolDefs {
		if td.Name == name {
			return true
		}
	}
	return false
}

// FinishReason says why generation stopped. Reason is normalized to "stop",
// "length", "tool_calls", "content_filter" or "other"; Raw is the provider's.
type FinishReason struct {
	Reason string `json:"reason"`
	Raw    string `json:"raw,omitempty"`
}

// Usage counts tokens for one or more calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	return u
}

// Response is the output of Complete. Usage is nil when the provider did not
// report token counts.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        *Usage       `json:"usage,omitempty"`
}

// Text returns the reply's text.
func (r Response) Text() string { return r.Message.TextContent() }

// ToolCalls returns the tool calls the model requested, in order.
func (r Response) ToolCalls() []ToolCall {
	data := r.Message.ToolCalls()
	if data == nil {
		return nil
	}
	calls := make([]ToolCall, len(data))
	for i, d := range data {
		calls[i] = ToolCall{ID: d.ID, Name: d.Name, Arguments: d.Arguments}
	}
	return calls
}
