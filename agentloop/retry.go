package agentloop

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/martinemde/chatagent/unifiedllm"
)

// Classification says what the retry driver does with a failed attempt.
type Classification int

const (
	// Fatal errors end the run and are returned unchanged.
	Fatal Classification = iota
	// Retryable errors restart the run from its original input.
	Retryable
)

func (c Classification) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// Classify decides whether an attempt error warrants a fresh attempt. Only
// the model calling a tool it was never offered qualifies.
func Classify(err error) Classification {
	var te *ToolExecutionError
	if errors.As(err, &te) {
		return Fatal
	}
	if unifiedllm.IsToolNotDeclared(err) {
		return Retryable
	}
	return Fatal
}

// RetryController drives whole-run attempts against a retry budget and an
// overall deadline.
type RetryController struct {
	maxRetries int
	deadline   time.Duration
	listeners  []func(err error, attempt int)
}

// NewRetryController allows maxRetries restarts after the first attempt.
// deadline <= 0 leaves only the caller's context in charge.
func NewRetryController(maxRetries int, deadline time.Duration, listeners ...func(err error, attempt int)) *RetryController {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryController{maxRetries: maxRetries, deadline: deadline, listeners: listeners}
}

// MaxAttempts is the total number of attempts the budget allows.
func (rc *RetryController) MaxAttempts() int {
	return rc.maxRetries + 1
}

// Do calls fn until it succeeds, fails fatally, or the budget is spent, and
// reports how many attempts were made. On exhaustion the last attempt's error
// is returned unchanged. fn receives the 1-based attempt number and must not
// reuse anything from an earlier attempt.
func (rc *RetryController) Do(ctx context.Context, fn func(ctx context.Context, attempt int) (*Result, error)) (*Result, int, error) {
	if rc.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.deadline)
		defer cancel()
	}

	attempts := 0
	policy := unifiedllm.RetryPolicy{
		MaxRetries: rc.maxRetries,
		Retryable:  func(err error) bool { return Classify(err) == Retryable },
		OnRetry: func(err error, retry int, _ time.Duration) {
			zerolog.Ctx(ctx).Warn().Err(err).
				Int("attempt", retry).
				Int("max_attempts", rc.MaxAttempts()).
				Msg("Model hallucinated a tool call, retrying")
			for _, l := range rc.listeners {
				l(err, retry)
			}
		},
	}

	res, err := unifiedllm.Retry(ctx, policy, func(ctx context.Context) (*Result, error) {
		attempts++
		return fn(ctx, attempts)
	})
	return res, attempts, err
}
