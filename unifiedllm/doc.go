// Package unifiedllm is the model boundary of the chat agent. It presents a
// provider-agnostic request/response shape over OpenAI-compatible endpoints
// (a LiteLLM proxy serving local models, and Groq) and over gollm.
//
// # Architecture
//
//   - Provider layer: the ProviderAdapter interface with OpenAIAdapter and GollmAdapter
//   - Utilities: the typed error hierarchy and the generic bounded Retry
//   - Client: provider routing and middleware (ValidateToolCalls)
//   - Catalog: display names offered to callers mapped to provider model ids
//
// # Quick Start
//
//	adapter := unifiedllm.NewOpenAIAdapter("local", "http://localhost:4000/", "my-secret-key")
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider("local", adapter),
//	    unifiedllm.WithMiddleware(unifiedllm.ValidateToolCalls()),
//	)
//
//	resp, _ := client.Complete(ctx, unifiedllm.Request{
//	    Model:    "phi3",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text())
//
// # Undeclared tools
//
// A model asking for a tool that was not part of the request is reported as a
// *ToolNotDeclaredError regardless of whether the provider rejected the call
// or returned it. Callers use IsToolNotDeclared to tell the two kinds of
// failure apart without inspecting messages.
package unifiedllm
