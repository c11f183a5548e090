// Package agentloop implements the tool-using agent behind the chat backend.
//
// A run takes a conversation, lets the model answer it, and executes any tool
// calls the model makes until the model produces a final answer. The loop
// talks to the model through the ModelClient interface; LLMModelClient backs
// it with the unifiedllm package.
//
// # Architecture
//
//   - Turn: immutable conversation entries (user, system, assistant, tool result).
//   - ToolRegistry: a frozen, ordered set of tools shared across runs.
//   - ToolInvoker: resolves and runs one tool call.
//   - BuildSystemPrompt: the per-attempt preamble listing the tools.
//   - Observer: hook points around model and tool calls, never able to
//     abort a run.
//   - RetryController: restarts a run from its original input when the model
//     calls a tool that was never declared, up to a fixed budget.
//   - Agent: the state machine tying these together.
//
// # Quick Start
//
//	registry, _ := agentloop.NewToolRegistry(search.NewWebSearchTool(manager, 5))
//	agent := agentloop.NewAgent(agentloop.NewLLMModelClient(client, catalog, 0.7), registry,
//	    agentloop.WithObserver(agentloop.NewLogObserver(log.Logger)),
//	)
//
//	reply, err := agent.Run(ctx, []agentloop.ChatMessage{
//	    {Role: "user", Content: "What's new in Go?"},
//	}, "Phi-3", nil)
package agentloop
