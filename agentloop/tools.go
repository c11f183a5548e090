package agentloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/martinemde/chatagent/unifiedllm"
)

// Tool is a capability the model may call by name.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON Schema of the arguments object.
	Parameters() map[string]any
	// Invoke runs the tool. The returned text is fed back to the model as-is.
	Invoke(ctx context.Context, arguments json.RawMessage) (string, error)
}

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Fn              func(ctx context.Context, arguments json.RawMessage) (string, error)
}

func (t *FuncTool) Name() string               { return t.ToolName }
func (t *FuncTool) Description() string        { return t.ToolDescription }
func (t *FuncTool) Parameters() map[string]any { return t.Schema }

func (t *FuncTool) Invoke(ctx context.Context, arguments json.RawMessage) (string, error) {
	return t.Fn(ctx, arguments)
}

// ErrToolNotFound is returned when the model names a tool that is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ToolExecutionError reports a failed tool call. Unknown tool references are
// reported the same way and wrap ErrToolNotFound.
type ToolExecutionError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q (call %s): %v", e.Tool, e.CallID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// ToolRegistry is an ordered, immutable set of tools. It is built once and
// may be shared by any number of concurrent runs.
type ToolRegistry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewToolRegistry freezes the given tools in order. Names must be non-empty
// and unique.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, errors.Errorf("tool %q registered twice", name)
		}
		r.tools = append(r.tools, t)
		r.byName[name] = t
	}
	return r, nil
}

// List returns the tools in registration order.
func (r *ToolRegistry) List() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Resolve finds a tool by exact name.
func (r *ToolRegistry) Resolve(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, errors.Wrapf(ErrToolNotFound, "%q", name)
	}
	return t, nil
}

// Names returns the names of all registered tools in order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	return len(r.tools)
}

// Definitions returns the tool descriptions sent to the model, in order.
func (r *ToolRegistry) Definitions() []unifiedllm.ToolDefinition {
	defs := make([]unifiedllm.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = unifiedllm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// ToolInvoker runs tool calls against a registry.
type ToolInvoker struct {
	registry       *ToolRegistry
	maxResultChars int
}

// NewToolInvoker returns an invoker. maxResultChars > 0 caps the text fed
// back to the model with a head/tail cut.
func NewToolInvoker(registry *ToolRegistry, maxResultChars int) *ToolInvoker {
	return &ToolInvoker{registry: registry, maxResultChars: maxResultChars}
}

// Invoke resolves and runs one call, returning the tool's full output and the
// result turn carrying the (possibly truncated) text for the model.
func (i *ToolInvoker) Invoke(ctx context.Context, call unifiedllm.ToolCall) (string, Turn, error) {
	tool, err := i.registry.Resolve(call.Name)
	if err != nil {
		return "", Turn{}, &ToolExecutionError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	output, err := tool.Invoke(ctx, args)
	if err != nil {
		return "", Turn{}, &ToolExecutionError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	text := output
	if i.maxResultChars > 0 {
		text = TruncateOutput(output, i.maxResultChars, TruncateHeadTail)
	}
	return output, NewToolResultTurn(call.ID, text), nil
}

// ParseToolArguments unmarshals tool call arguments into a map.
func ParseToolArguments(raw json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errors.Wrap(err, "invalid tool arguments")
	}
	return args, nil
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from parsed tool arguments.
func GetIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
