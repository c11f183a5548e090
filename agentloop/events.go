package agentloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/martinemde/chatagent/unifiedllm"
)

// EventKind identifies the hook an event was recorded for.
type EventKind string

const (
	EventModelStart EventKind = "model_start"
	EventModelEnd   EventKind = "model_end"
	EventToolStart  EventKind = "tool_start"
	EventToolEnd    EventKind = "tool_end"
	EventToolError  EventKind = "tool_error"
)

// Event is one queued observer notification.
type Event struct {
	Kind      EventKind
	Timestamp time.Time
	Model     string
	Turns     int
	Usage     *unifiedllm.Usage
	Tool      string
	Preview   string
	Chars     int
	Err       error

	ctx context.Context
}

// QueuedObserver records notifications into a buffered queue and delivers
// them to a sink on a single goroutine, preserving order. When the queue is
// full the event is dropped instead of blocking the run; the first drop is
// logged as a warning through the event context's logger.
type QueuedObserver struct {
	sink    Observer
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64
	closed  bool
	mu      sync.Mutex
}

// NewQueuedObserver starts the delivery goroutine. Close must be called to
// flush the queue and stop it.
func NewQueuedObserver(sink Observer, bufferSize int) *QueuedObserver {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	q := &QueuedObserver{
		sink: sink,
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
	go q.deliver()
	return q
}

func (q *QueuedObserver) deliver() {
	defer close(q.done)
	for ev := range q.ch {
		ctx := ev.ctx
		switch ev.Kind {
		case EventModelStart:
			safeNotify(ctx, string(ev.Kind), func() { q.sink.ModelStart(ctx, ev.Model, ev.Turns) })
		case EventModelEnd:
			safeNotify(ctx, string(ev.Kind), func() { q.sink.ModelEnd(ctx, ev.Usage) })
		case EventToolStart:
			safeNotify(ctx, string(ev.Kind), func() { q.sink.ToolStart(ctx, ev.Tool, ev.Preview) })
		case EventToolEnd:
			safeNotify(ctx, string(ev.Kind), func() { q.sink.ToolEnd(ctx, ev.Chars, ev.Preview) })
		case EventToolError:
			safeNotify(ctx, string(ev.Kind), func() { q.sink.ToolError(ctx, ev.Err) })
		}
	}
}

func (q *QueuedObserver) enqueue(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	ev.Timestamp = time.Now()
	// Delivery happens after the run may have finished; keep values, drop cancellation.
	ev.ctx = context.WithoutCancel(ev.ctx)
	select {
	case q.ch <- ev:
	default:
		if q.dropped.Add(1) == 1 {
			zerolog.Ctx(ev.ctx).Warn().
				Str("event", string(ev.Kind)).
				Int("buffer", cap(q.ch)).
				Msg("observer queue full, dropping events")
		}
	}
}

func (q *QueuedObserver) ModelStart(ctx context.Context, model string, promptTurns int) {
	q.enqueue(Event{ctx: ctx, Kind: EventModelStart, Model: model, Turns: promptTurns})
}

func (q *QueuedObserver) ModelEnd(ctx context.Context, usage *unifiedllm.Usage) {
	q.enqueue(Event{ctx: ctx, Kind: EventModelEnd, Usage: usage})
}

func (q *QueuedObserver) ToolStart(ctx context.Context, tool, queryPreview string) {
	q.enqueue(Event{ctx: ctx, Kind: EventToolStart, Tool: tool, Preview: queryPreview})
}

func (q *QueuedObserver) ToolEnd(ctx context.Context, resultChars int, resultPreview string) {
	q.enqueue(Event{ctx: ctx, Kind: EventToolEnd, Chars: resultChars, Preview: resultPreview})
}

func (q *QueuedObserver) ToolError(ctx context.Context, err error) {
	q.enqueue(Event{ctx: ctx, Kind: EventToolError, Err: err})
}

// Dropped returns how many events were discarded because the queue was full.
func (q *QueuedObserver) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting events and waits until queued ones are delivered.
// Safe to call multiple times.
func (q *QueuedObserver) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}
