package unifiedllm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ValidateToolCalls rejects responses that call a tool the request did not
// declare. Such a response becomes a *ToolNotDeclaredError so callers see the
// same failure kind as when the provider itself refuses the call.
func ValidateToolCalls() Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		resp, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, tc := range resp.ToolCalls() {
			if !req.Declares(tc.Name) {
				return nil, &ToolNotDeclaredError{
					ProviderError: ProviderError{
						SDKError: SDKError{Message: fmt.Sprintf("response called tool %q which was not declared", tc.Name)},
						Provider: resp.Provider,
					},
					ToolName: tc.Name,
				}
			}
		}
		return resp, nil
	}
}

// LogRequests logs each completion at debug level, with failures at warn.
// The logger is taken from the context when one is attached.
func LogRequests(fallback zerolog.Logger) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		logger := zerolog.Ctx(ctx)
		if logger.GetLevel() == zerolog.Disabled {
			logger = &fallback
		}
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			logger.Warn().Err(err).
				Str("provider", req.Provider).
				Str("model", req.Model).
				Dur("elapsed", elapsed).
				Msg("completion failed")
			return nil, err
		}
		ev := logger.Debug().
			Str("provider", req.Provider).
			Str("model", req.Model).
			Int("messages", len(req.Messages)).
			Int("tool_calls", len(resp.ToolCalls())).
			Str("finish_reason", resp.FinishReason.Reason).
			Dur("elapsed", elapsed)
		if resp.Usage != nil {
			ev = ev.Int("input_tokens", resp.Usage.InputTokens).Int("output_tokens", resp.Usage.OutputTokens)
		}
		ev.Msg("completion")
		return resp, nil
	}
}
