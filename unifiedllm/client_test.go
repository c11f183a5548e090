package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// mockAdapter answers every request with response or err and keeps the
// requests it saw.
type mockAdapter struct {
	name     string
	response *Response
	err      error

	mu       sync.Mutex
	requests []Request
	closed   bool
	closeErr error
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Complete(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockAdapter) Close() error {
	m.closed = true
	return m.closeErr
}

func newMockAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name: name,
		response: &Response{
			ID:           "test_resp",
			Model:        "test-model",
			Provider:     name,
			Message:      AssistantMessage(text),
			FinishReason: FinishReason{Reason: "stop"},
			Usage:        &Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		},
	}
}

func complete(t *testing.T, c *Client, req Request) string {
	t.Helper()
	resp, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp.Text()
}

func TestClientSoleProviderIsDefault(t *testing.T) {
	mock := newMockAdapter("only", "Hello!")
	client := NewClient(WithProvider("only", mock))

	if got := complete(t, client, Request{Model: "whatever", Messages: []Message{UserMessage("Hi")}}); got != "Hello!" {
		t.Errorf("expected %q, got %q", "Hello!", got)
	}
	if got := mock.requests[0].Provider; got != "only" {
		t.Errorf("expected provider filled in on request, got %q", got)
	}
}

func TestClientRouting(t *testing.T) {
	local := newMockAdapter(ProviderLocal, "local response")
	groq := newMockAdapter(ProviderGroq, "groq response")
	client := NewClient(
		WithProvider(ProviderLocal, local),
		WithProvider(ProviderGroq, groq),
		WithDefaultProvider(ProviderLocal),
	)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"explicit provider", Request{Model: "anything", Provider: ProviderGroq}, "groq response"},
		{"catalog id", Request{Model: "llama-3.1-8b-instant"}, "groq response"},
		{"catalog display name", Request{Model: "Groq Mixtral 8x7B"}, "groq response"},
		{"unknown model", Request{Model: "unknown-model"}, "local response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := complete(t, client, tt.req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientCatalogProviderMustBeRegistered(t *testing.T) {
	local := newMockAdapter(ProviderLocal, "local response")
	client := NewClient(WithProvider(ProviderLocal, local))

	// A Groq model falls back to the default when Groq is not registered.
	if got := complete(t, client, Request{Model: "llama-3.1-8b-instant"}); got != "local response" {
		t.Errorf("expected fallback to local, got %q", got)
	}
}

func TestClientConfigurationErrors(t *testing.T) {
	two := NewClient(
		WithProvider("a", newMockAdapter("a", "")),
		WithProvider("b", newMockAdapter("b", "")),
	)
	tests := []struct {
		name   string
		client *Client
		req    Request
	}{
		{"no providers", NewClient(), Request{Model: "m"}},
		{"unregistered explicit provider", NewClient(WithProvider("local", newMockAdapter("local", ""))), Request{Model: "m", Provider: "groq"}},
		{"no default among several", two, Request{Model: "m"}},
		{"unregistered default", NewClient(WithDefaultProvider("gone")), Request{Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Complete(context.Background(), tt.req)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigurationError, got %T (%v)", err, err)
			}
		})
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
			order = append(order, name+">")
			resp, err := next(ctx, req)
			order = append(order, "<"+name)
			return resp, err
		}
	}
	client := NewClient(
		WithProvider("test", newMockAdapter("test", "response")),
		WithMiddleware(trace("outer")),
		WithMiddleware(trace("inner")),
	)

	complete(t, client, Request{Model: "test-model"})

	want := []string{"outer>", "inner>", "<inner", "<outer"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestClientMiddlewareSeesResolvedProvider(t *testing.T) {
	var seen string
	client := NewClient(
		WithProvider(ProviderGroq, newMockAdapter(ProviderGroq, "x")),
		WithMiddleware(func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
			seen = req.Provider
			return next(ctx, req)
		}),
	)
	complete(t, client, Request{Model: "llama-3.1-8b-instant"})
	if seen != ProviderGroq {
		t.Errorf("middleware saw provider %q", seen)
	}
}

func TestClientProvidersAndClose(t *testing.T) {
	local := newMockAdapter(ProviderLocal, "")
	groq := newMockAdapter(ProviderGroq, "")
	groq.closeErr = errors.New("socket stuck")
	client := NewClient(WithProvider(ProviderLocal, local), WithProvider(ProviderGroq, groq))

	if got := client.Providers(); len(got) != 2 || got[0] != ProviderGroq || got[1] != ProviderLocal {
		t.Errorf("unexpected providers %v", got)
	}
	err := client.Close()
	if !errors.Is(err, groq.closeErr) {
		t.Errorf("expected close error to be reported, got %v", err)
	}
	if !local.closed || !groq.closed {
		t.Error("expected every adapter to be closed")
	}
}

func TestValidateToolCallsRejectsUndeclared(t *testing.T) {
	mock := newMockAdapter("test", "")
	mock.response.Message = AssistantMessage("", ToolCall{
		ID: "call_1", Name: "open_url", Arguments: json.RawMessage(`{"url":"http://x"}`),
	})
	client := NewClient(WithProvider("test", mock), WithMiddleware(ValidateToolCalls()))

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		ToolDefs: []ToolDefinition{{Name: "web_search"}},
	})
	var tnd *ToolNotDeclaredError
	if !errors.As(err, &tnd) {
		t.Fatalf("expected ToolNotDeclaredError, got %v", err)
	}
	if tnd.ToolName != "open_url" || tnd.Provider != "test" {
		t.Errorf("unexpected error fields %+v", tnd)
	}
}

func TestValidateToolCallsPassesDeclared(t *testing.T) {
	mock := newMockAdapter("test", "")
	mock.response.Message = AssistantMessage("", ToolCall{
		ID: "call_1", Name: "web_search", Arguments: json.RawMessage(`{"query":"go"}`),
	})
	client := NewClient(WithProvider("test", mock), WithMiddleware(ValidateToolCalls()))

	resp, err := client.Complete(context.Background(), Request{
		Model:    "m",
		ToolDefs: []ToolDefinition{{Name: "web_search"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls()) != 1 {
		t.Error("expected tool call to pass through")
	}
}

func TestValidateToolCallsPassesErrors(t *testing.T) {
	boom := &ServerError{ProviderError{SDKError: SDKError{Message: "boom"}}}
	client := NewClient(
		WithProvider("test", &mockAdapter{name: "test", err: boom}),
		WithMiddleware(ValidateToolCalls()),
	)
	if _, err := client.Complete(context.Background(), Request{Model: "m"}); err != boom {
		t.Fatalf("expected provider error unchanged, got %v", err)
	}
}
