package agentloop

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/chatagent/unifiedllm"
)

func TestQueuedObserverPreservesOrder(t *testing.T) {
	rec := &recordingObserver{}
	q := NewQueuedObserver(rec, 16)
	ctx := context.Background()

	q.ModelStart(ctx, "Phi-3", 2)
	q.ModelEnd(ctx, &unifiedllm.Usage{InputTokens: 5, OutputTokens: 7})
	q.ToolStart(ctx, "web_search", "go")
	q.ToolEnd(ctx, 10, "result")
	q.Close()

	assert.Equal(t, []string{
		"model_start Phi-3 2",
		"model_end 5/7",
		"tool_start web_search go",
		"tool_end 10 result",
	}, rec.snapshot())
	assert.Zero(t, q.Dropped())
}

func TestQueuedObserverCloseIsIdempotent(t *testing.T) {
	q := NewQueuedObserver(NopObserver{}, 1)
	q.Close()
	q.Close()

	// Events after Close are ignored.
	q.ToolError(context.Background(), assert.AnError)
	assert.Zero(t, q.Dropped())
}

// blockingObserver holds the delivery goroutine inside ModelStart.
type blockingObserver struct {
	NopObserver
	started chan struct{}
	release chan struct{}
}

func (b *blockingObserver) ModelStart(context.Context, string, int) {
	close(b.started)
	<-b.release
}

func TestQueuedObserverDropsWhenFull(t *testing.T) {
	sink := &blockingObserver{started: make(chan struct{}), release: make(chan struct{})}
	q := NewQueuedObserver(sink, 1)
	ctx := context.Background()

	q.ModelStart(ctx, "Phi-3", 1)
	<-sink.started

	q.ToolStart(ctx, "web_search", "queued")
	q.ToolStart(ctx, "web_search", "dropped")

	close(sink.release)
	q.Close()
	assert.Equal(t, int64(1), q.Dropped())
}

func TestQueuedObserverWarnsOnFirstDrop(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	sink := &blockingObserver{started: make(chan struct{}), release: make(chan struct{})}
	q := NewQueuedObserver(sink, 1)

	q.ModelStart(ctx, "Phi-3", 1)
	<-sink.started

	q.ToolStart(ctx, "web_search", "queued")
	q.ToolStart(ctx, "web_search", "dropped")
	q.ToolEnd(ctx, 3, "dropped too")

	close(sink.release)
	q.Close()
	assert.Equal(t, int64(2), q.Dropped())
	assert.Equal(t, 1, strings.Count(buf.String(), "observer queue full"), buf.String())
	assert.Contains(t, buf.String(), `"event":"tool_start"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestQueuedObserverSurvivesCancelledContext(t *testing.T) {
	rec := &recordingObserver{}
	q := NewQueuedObserver(rec, 4)

	ctx, cancel := context.WithCancel(context.Background())
	q.ToolStart(ctx, "web_search", "go")
	cancel()
	q.Close()

	require.Len(t, rec.snapshot(), 1)
}
