package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/martinemde/chatagent/unifiedllm"
)

// LoopState is the position of an attempt in its state machine.
type LoopState string

const (
	StateAwaitingModel  LoopState = "awaiting_model"
	StateModelResponded LoopState = "model_responded"
	StateExecutingTools LoopState = "executing_tools"
	StateDone           LoopState = "done"
	StateFailed         LoopState = "failed"
)

// MaxRoundsError is returned when the model keeps requesting tools after the
// configured number of tool rounds.
type MaxRoundsError struct {
	Rounds int
}

func (e *MaxRoundsError) Error() string {
	return fmt.Sprintf("max tool rounds (%d) reached without a final answer", e.Rounds)
}

// Result describes a successful run.
type Result struct {
	// Reply is the final assistant turn; it never carries tool calls.
	Reply AssistantTurn
	// History is the full history of the successful attempt, preamble first.
	History    []Turn
	Attempts   int
	Rounds     int
	ModelCalls int
	ToolCalls  int
	Usage      unifiedllm.Usage
}

// attempt holds everything one pass through the loop owns. A retry builds a
// new attempt; nothing carries over.
type attempt struct {
	agent       *Agent
	model       string
	temperature *float64
	tools       []unifiedllm.ToolDefinition

	state      LoopState
	history    []Turn
	rounds     int
	modelCalls int
	usage      unifiedllm.Usage
	logger     *zerolog.Logger
}

func (a *Agent) runAttempt(ctx context.Context, input []Turn, model string, temperature *float64) (*Result, error) {
	at := &attempt{
		agent:       a,
		model:       model,
		temperature: temperature,
		tools:       a.registry.Definitions(),
		history:     make([]Turn, 0, len(input)+1),
		logger:      zerolog.Ctx(ctx),
	}
	at.history = append(at.history, NewSystemTurn(BuildSystemPrompt(a.registry, a.now())))
	at.history = append(at.history, input...)

	res, err := at.run(ctx)
	if err != nil {
		at.transition(StateFailed)
		return nil, err
	}
	return res, nil
}

func (at *attempt) run(ctx context.Context) (*Result, error) {
	obs := at.agent.observer
	for {
		at.transition(StateAwaitingModel)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obs.ModelStart(ctx, at.model, len(at.history))
		reply, err := at.agent.model.Generate(ctx, ModelRequest{
			Model:       at.model,
			Temperature: at.temperature,
			History:     slices.Clip(at.history),
			Tools:       at.tools,
		})
		if err != nil {
			return nil, err
		}
		at.modelCalls++
		obs.ModelEnd(ctx, reply.Usage)
		if reply.Usage != nil {
			at.usage = at.usage.Add(*reply.Usage)
		}

		turn := NewAssistantTurn(reply.Turn.Content, reply.Turn.ToolCalls)
		at.history = append(at.history, turn)
		at.transition(StateModelResponded)

		if !turn.Assistant.HasToolCalls() {
			at.transition(StateDone)
			return at.result(*turn.Assistant), nil
		}
		if at.rounds >= at.agent.config.MaxRounds {
			return nil, &MaxRoundsError{Rounds: at.rounds}
		}

		at.transition(StateExecutingTools)
		results, err := at.executeTools(ctx, turn.Assistant.ToolCalls)
		if err != nil {
			return nil, err
		}
		at.history = append(at.history, results...)
		at.rounds++

		if w := at.agent.config.LoopDetectionWindow; w > 0 && DetectLoop(at.history, w) {
			at.logger.Warn().Int("window", w).Msg("model is repeating the same tool calls")
		}
	}
}

// transition moves the attempt to a new state. Failed is absorbing.
func (at *attempt) transition(to LoopState) {
	if at.state == StateFailed {
		return
	}
	at.logger.Trace().Str("from", string(at.state)).Str("to", string(to)).Msg("agent state")
	at.state = to
}

func (at *attempt) result(reply AssistantTurn) *Result {
	history := make([]Turn, len(at.history))
	copy(history, at.history)
	return &Result{
		Reply:      reply,
		History:    history,
		Rounds:     at.rounds,
		ModelCalls: at.modelCalls,
		ToolCalls:  countToolCalls(at.history),
		Usage:      at.usage,
	}
}

// executeTools runs one round of tool calls. Results are returned in the
// order the model listed the calls, also when they run concurrently.
func (at *attempt) executeTools(ctx context.Context, calls []unifiedllm.ToolCall) ([]Turn, error) {
	results := make([]Turn, len(calls))

	if !at.agent.config.ParallelTools || len(calls) == 1 {
		for i, call := range calls {
			turn, err := at.invoke(ctx, at.agent.observer, call)
			if err != nil {
				return nil, err
			}
			results[i] = turn
		}
		return results, nil
	}

	obs := &serialObserver{inner: at.agent.observer}
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			turn, err := at.invoke(gctx, obs, call)
			if err != nil {
				return err
			}
			results[i] = turn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (at *attempt) invoke(ctx context.Context, obs Observer, call unifiedllm.ToolCall) (Turn, error) {
	obs.ToolStart(ctx, call.Name, Preview(toolInput(call.Arguments), QueryPreviewLimit, ""))

	output, turn, err := at.agent.invoker.Invoke(ctx, call)
	if err != nil {
		obs.ToolError(ctx, err)
		return Turn{}, err
	}

	obs.ToolEnd(ctx, utf8.RuneCountInString(output), Preview(output, ResultPreviewLimit, PreviewMarker))
	return turn, nil
}

// toolInput renders the arguments for humans: the "query" argument when there
// is one, the raw JSON otherwise.
func toolInput(args json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err == nil {
		if q, ok := GetStringArg(m, "query"); ok {
			return q
		}
	}
	return string(args)
}
