package agentloop

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/chatagent/unifiedllm"
)

func TestClassify(t *testing.T) {
	tnd := toolNotDeclared("open_url")

	assert.Equal(t, Retryable, Classify(tnd))
	assert.Equal(t, Retryable, Classify(errors.Wrap(tnd, "model call")))

	assert.Equal(t, Fatal, Classify(&ToolExecutionError{Tool: "web_search", Err: ErrToolNotFound}))
	assert.Equal(t, Fatal, Classify(&ToolExecutionError{Tool: "web_search", Err: tnd}))
	assert.Equal(t, Fatal, Classify(&MaxRoundsError{Rounds: 10}))
	assert.Equal(t, Fatal, Classify(context.DeadlineExceeded))
	assert.Equal(t, Fatal, Classify(&unifiedllm.ServerError{}))
	assert.Equal(t, Fatal, Classify(errors.New("anything")))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "retryable", Retryable.String())
}

func TestRetryControllerBudget(t *testing.T) {
	rc := NewRetryController(2, 0)
	assert.Equal(t, 3, rc.MaxAttempts())

	assert.Equal(t, 1, NewRetryController(-4, 0).MaxAttempts())
}

func TestRetryControllerAttemptNumbers(t *testing.T) {
	var seen []int
	rc := NewRetryController(2, 0)

	res, attempts, err := rc.Do(context.Background(), func(_ context.Context, attempt int) (*Result, error) {
		seen = append(seen, attempt)
		if attempt < 3 {
			return nil, toolNotDeclared("x")
		}
		return &Result{Reply: AssistantTurn{Content: "ok"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Reply.Content)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRetryControllerStopsOnFatal(t *testing.T) {
	fatal := errors.New("fatal")
	var listened int
	rc := NewRetryController(2, 0, func(error, int) { listened++ })

	_, attempts, err := rc.Do(context.Background(), func(context.Context, int) (*Result, error) {
		return nil, fatal
	})
	assert.Same(t, fatal, err)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, listened)
}

func TestRetryControllerDeadline(t *testing.T) {
	rc := NewRetryController(2, 10*time.Millisecond)

	_, _, err := rc.Do(context.Background(), func(ctx context.Context, _ int) (*Result, error) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, time.Second)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
