package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config bounds a run.
type Config struct {
	// MaxRetries is the number of restarts allowed after the model calls an
	// undeclared tool.
	MaxRetries int
	// MaxRounds caps tool-execution rounds per attempt.
	MaxRounds int
	// Deadline bounds a run across all attempts. Zero means no deadline.
	Deadline time.Duration
	// ParallelTools runs the calls of one round concurrently.
	ParallelTools bool
	// MaxToolResultChars caps tool output fed back to the model. Zero means no cap.
	MaxToolResultChars int
	// LoopDetectionWindow is how many recent tool calls are checked for
	// repetition. Zero disables the check.
	LoopDetectionWindow int
}

// DefaultConfig returns the default run bounds.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          2,
		MaxRounds:           10,
		Deadline:            2 * time.Minute,
		LoopDetectionWindow: 6,
	}
}

// Agent runs conversations through the model and its tools. An Agent is safe
// for concurrent use; runs share only the read-only registry.
type Agent struct {
	model    ModelClient
	registry *ToolRegistry
	invoker  *ToolInvoker
	observer MultiObserver
	retry    *RetryController
	config   Config
	logger   zerolog.Logger
	now      func() time.Time

	retryListeners []func(err error, attempt int)
}

// Option configures an Agent.
type Option func(*Agent)

// WithConfig replaces the default run bounds.
func WithConfig(cfg Config) Option {
	return func(a *Agent) {
		a.config = cfg
	}
}

// WithObserver adds observers, notified in the order given.
func WithObserver(obs ...Observer) Option {
	return func(a *Agent) {
		a.observer = append(a.observer, obs...)
	}
}

// WithLogger sets the base logger; each run derives one carrying its run id.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithClock overrides the time source used for the preamble.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

// WithRetryListener registers a callback invoked before each restart.
func WithRetryListener(fn func(err error, attempt int)) Option {
	return func(a *Agent) {
		a.retryListeners = append(a.retryListeners, fn)
	}
}

// NewAgent builds an agent. A nil registry offers no tools.
func NewAgent(model ModelClient, registry *ToolRegistry, opts ...Option) *Agent {
	if registry == nil {
		registry, _ = NewToolRegistry()
	}
	a := &Agent{
		model:    model,
		registry: registry,
		config:   DefaultConfig(),
		logger:   log.Logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.config.MaxRounds <= 0 {
		a.config.MaxRounds = DefaultConfig().MaxRounds
	}
	a.invoker = NewToolInvoker(registry, a.config.MaxToolResultChars)
	a.retry = NewRetryController(a.config.MaxRetries, a.config.Deadline, a.retryListeners...)
	return a
}

// Registry returns the tools offered to the model.
func (a *Agent) Registry() *ToolRegistry {
	return a.registry
}

// ChatMessage is one caller-supplied conversation entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the caller-facing result of Run.
type Reply struct {
	Content string `json:"content"`
}

// UnknownRoleError rejects a message whose role is not user, assistant or system.
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q: must be 'user', 'assistant', or 'system'", e.Role)
}

// ValidRole reports whether role is accepted in caller input.
func ValidRole(role string) bool {
	switch role {
	case "user", "assistant", "system":
		return true
	}
	return false
}

// TurnsFromMessages converts caller messages into input turns.
func TurnsFromMessages(messages []ChatMessage) ([]Turn, error) {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			turns = append(turns, NewUserTurn(m.Content))
		case "assistant":
			turns = append(turns, NewAssistantTurn(m.Content, nil))
		case "system":
			turns = append(turns, NewSystemTurn(m.Content))
		default:
			return nil, &UnknownRoleError{Role: m.Role}
		}
	}
	return turns, nil
}

// Run answers a conversation. temperature nil or zero selects the model
// client's default.
func (a *Agent) Run(ctx context.Context, messages []ChatMessage, model string, temperature *float64) (*Reply, error) {
	input, err := TurnsFromMessages(messages)
	if err != nil {
		return nil, err
	}
	res, err := a.RunTurns(ctx, input, model, temperature)
	if err != nil {
		return nil, err
	}
	return &Reply{Content: res.Reply.Content}, nil
}

// RunTurns answers a conversation given as turns and reports run details.
// Every attempt starts from input; the slice is not modified.
func (a *Agent) RunTurns(ctx context.Context, input []Turn, model string, temperature *float64) (*Result, error) {
	frozen := make([]Turn, len(input))
	copy(frozen, input)

	logger := a.logger.With().
		Str("run_id", uuid.New().String()).
		Str("model", model).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Int("input_messages", len(frozen)).Msg("Agent invoked")
	start := time.Now()

	res, attempts, err := a.retry.Do(ctx, func(ctx context.Context, attempt int) (*Result, error) {
		if attempt > 1 {
			logger.Debug().Int("attempt", attempt).Msg("starting fresh attempt")
		}
		return a.runAttempt(ctx, frozen, model, temperature)
	})
	if err != nil {
		logger.Error().Err(err).
			Int("attempts", attempts).
			Dur("elapsed", time.Since(start)).
			Str("classification", Classify(err).String()).
			Msg("Agent failed")
		return nil, err
	}

	res.Attempts = attempts
	logger.Info().
		Int("total_messages", len(res.History)).
		Int("tool_calls", res.ToolCalls).
		Int("attempts", attempts).
		Int("reply_chars", len(res.Reply.Content)).
		Dur("elapsed", time.Since(start)).
		Msg("Agent done")
	return res, nil
}
