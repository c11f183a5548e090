package agentloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/martinemde/chatagent/unifiedllm"
)

// Observer receives notifications around model and tool calls. Calls arrive
// synchronously and one at a time. Model notifications and sequential tool
// calls arrive in order. When tool calls run in parallel, each call's
// ToolStart precedes its ToolEnd or ToolError, but notifications for
// different calls of the same round may interleave. A panicking observer is
// recovered and logged; it cannot change the outcome of a run.
type Observer interface {
	ModelStart(ctx context.Context, model string, promptTurns int)
	// ModelEnd receives nil usage when the provider reported none.
	ModelEnd(ctx context.Context, usage *unifiedllm.Usage)
	ToolStart(ctx context.Context, tool string, queryPreview string)
	ToolEnd(ctx context.Context, resultChars int, resultPreview string)
	// ToolError replaces ToolEnd when the call failed.
	ToolError(ctx context.Context, err error)
}

// NopObserver ignores every notification. Embed it to implement only some hooks.
type NopObserver struct{}

func (NopObserver) ModelStart(context.Context, string, int)     {}
func (NopObserver) ModelEnd(context.Context, *unifiedllm.Usage) {}
func (NopObserver) ToolStart(context.Context, string, string)   {}
func (NopObserver) ToolEnd(context.Context, int, string)        {}
func (NopObserver) ToolError(context.Context, error)            {}

// MultiObserver fans each notification out to every observer in order. A
// panic in one observer does not keep the others from being notified.
type MultiObserver []Observer

func (m MultiObserver) ModelStart(ctx context.Context, model string, promptTurns int) {
	for _, o := range m {
		safeNotify(ctx, "model_start", func() { o.ModelStart(ctx, model, promptTurns) })
	}
}

func (m MultiObserver) ModelEnd(ctx context.Context, usage *unifiedllm.Usage) {
	for _, o := range m {
		safeNotify(ctx, "model_end", func() { o.ModelEnd(ctx, usage) })
	}
}

func (m MultiObserver) ToolStart(ctx context.Context, tool, queryPreview string) {
	for _, o := range m {
		safeNotify(ctx, "tool_start", func() { o.ToolStart(ctx, tool, queryPreview) })
	}
}

func (m MultiObserver) ToolEnd(ctx context.Context, resultChars int, resultPreview string) {
	for _, o := range m {
		safeNotify(ctx, "tool_end", func() { o.ToolEnd(ctx, resultChars, resultPreview) })
	}
}

func (m MultiObserver) ToolError(ctx context.Context, err error) {
	for _, o := range m {
		safeNotify(ctx, "tool_error", func() { o.ToolError(ctx, err) })
	}
}

// serialObserver delivers notifications from concurrent tool calls one at a
// time.
type serialObserver struct {
	mu    sync.Mutex
	inner Observer
}

func (s *serialObserver) ModelStart(ctx context.Context, model string, promptTurns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ModelStart(ctx, model, promptTurns)
}

func (s *serialObserver) ModelEnd(ctx context.Context, usage *unifiedllm.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ModelEnd(ctx, usage)
}

func (s *serialObserver) ToolStart(ctx context.Context, tool, queryPreview string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ToolStart(ctx, tool, queryPreview)
}

func (s *serialObserver) ToolEnd(ctx context.Context, resultChars int, resultPreview string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ToolEnd(ctx, resultChars, resultPreview)
}

func (s *serialObserver) ToolError(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ToolError(ctx, err)
}

// safeNotify runs fn and swallows any panic it raises.
func safeNotify(ctx context.Context, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Warn().
				Str("hook", hook).
				Str("panic", fmt.Sprint(r)).
				Msg("observer failed")
		}
	}()
	fn()
}

// LogObserver writes one log line per notification.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver logs through the context logger when one is attached, and
// through logger otherwise.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) from(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &o.logger
}

func (o *LogObserver) ModelStart(ctx context.Context, model string, promptTurns int) {
	o.from(ctx).Debug().Str("model", model).Int("prompt_messages", promptTurns).Msg("LLM thinking")
}

func (o *LogObserver) ModelEnd(ctx context.Context, usage *unifiedllm.Usage) {
	ev := o.from(ctx).Debug()
	if usage != nil {
		ev = ev.Int("prompt_tokens", usage.InputTokens).Int("completion_tokens", usage.OutputTokens)
	}
	ev.Msg("LLM done")
}

func (o *LogObserver) ToolStart(ctx context.Context, tool, queryPreview string) {
	o.from(ctx).Info().Str("tool", tool).Str("query", queryPreview).Msg("Tool call")
}

func (o *LogObserver) ToolEnd(ctx context.Context, resultChars int, resultPreview string) {
	o.from(ctx).Info().Int("chars", resultChars).Str("result", resultPreview).Msg("Tool result")
}

func (o *LogObserver) ToolError(ctx context.Context, err error) {
	o.from(ctx).Error().Err(err).Msg("Tool error")
}
