package agentloop

import (
	"time"

	"github.com/martinemde/chatagent/unifiedllm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnSystem     TurnKind = "system"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
)

// Turn is one entry of a run's history. Exactly one variant pointer is set,
// matching Kind. A turn is never changed once it is in a history.
type Turn struct {
	Kind       TurnKind        `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	User       *UserTurn       `json:"user,omitempty"`
	System     *SystemTurn     `json:"system,omitempty"`
	Assistant  *AssistantTurn  `json:"assistant,omitempty"`
	ToolResult *ToolResultTurn `json:"tool_result,omitempty"`
}

type UserTurn struct {
	Content string `json:"content"`
}

type SystemTurn struct {
	Content string `json:"content"`
}

// AssistantTurn is a model reply. Content is empty when the model only
// asked for tools.
type AssistantTurn struct {
	Content   string                `json:"content"`
	ToolCalls []unifiedllm.ToolCall `json:"tool_calls,omitempty"`
}

func (a AssistantTurn) HasToolCalls() bool { return len(a.ToolCalls) > 0 }

// ToolResultTurn is the output of one tool call, matched by ToolCallID.
type ToolResultTurn struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func newTurn(kind TurnKind) Turn { return Turn{Kind: kind, Timestamp: time.Now()} }

func NewUserTurn(content string) Turn {
	t := newTurn(TurnUser)
	t.User = &UserTurn{Content: content}
	return t
}

func NewSystemTurn(content string) Turn {
	t := newTurn(TurnSystem)
	t.System = &SystemTurn{Content: content}
	return t
}

// NewAssistantTurn copies toolCalls so the turn does not alias the
// provider's response.
func NewAssistantTurn(content string, toolCalls []unifiedllm.ToolCall) Turn {
	t := newTurn(TurnAssistant)
	t.Assistant = &AssistantTurn{Content: content}
	if len(toolCalls) > 0 {
		t.Assistant.ToolCalls = append([]unifiedllm.ToolCall(nil), toolCalls...)
	}
	return t
}

func NewToolResultTurn(toolCallID, content string) Turn {
	t := newTurn(TurnToolResult)
	t.ToolResult = &ToolResultTurn{ToolCallID: toolCallID, Content: content}
	return t
}

// TextContent returns the turn's text, or "" for a malformed turn.
func (t Turn) TextContent() string {
	switch {
	case t.Kind == TurnUser && t.User != nil:
		return t.User.Content
	case t.Kind == TurnSystem && t.System != nil:
		return t.System.Content
	case t.Kind == TurnAssistant && t.Assistant != nil:
		return t.Assistant.Content
	case t.Kind == TurnToolResult && t.ToolResult != nil:
		return t.ToolResult.Content
	}
	return ""
}

// message renders the turn for a model request. ok is false for a turn
// whose variant is missing.
func (t Turn) message() (msg unifiedllm.Message, ok bool) {
	switch {
	case t.Kind == TurnUser && t.User != nil:
		return unifiedllm.UserMessage(t.User.Content), true
	case t.Kind == TurnSystem && t.System != nil:
		return unifiedllm.SystemMessage(t.System.Content), true
	case t.Kind == TurnAssistant && t.Assistant != nil:
		return unifiedllm.AssistantMessage(t.Assistant.Content, t.Assistant.ToolCalls...), true
	case t.Kind == TurnToolResult && t.ToolResult != nil:
		return unifiedllm.ToolResultMessage(t.ToolResult.ToolCallID, t.ToolResult.Content, false), true
	}
	return unifiedllm.Message{}, false
}

// ConvertHistoryToMessages renders a history in order, skipping malformed turns.
func ConvertHistoryToMessages(history []Turn) []unifiedllm.Message {
	messages := make([]unifiedllm.Message, 0, len(history))
	for _, t := range history {
		if msg, ok := t.message(); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// countToolCalls returns the number of tool calls requested across history.
func countToolCalls(history []Turn) int {
	n := 0
	for _, t := range history {
		if t.Kind == TurnAssistant && t.Assistant != nil {
			n += len(t.Assistant.ToolCalls)
		}
	}
	return n
}
