// Package toolregistry holds the set of tools available to an agent loop,
// validates incoming tool-call arguments against each tool's JSON schema,
// and dispatches calls concurrently while preserving call order in the
// returned results.
package toolregistry

import (
	"context"
	"encoding/json"

	"github.com/reagent-go/reagent/pkg/models"
)

// Tool is one invocable capability exposed to the model: a name, a
// description, a JSON schema for its parameters, and an execution
// function.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema describing this tool's parameters;
	// Registry.Register compiles it once at registration time.
	Schema() json.RawMessage
	// Execute runs the tool with validated arguments. Implementations may
	// assume args already satisfies Schema.
	Execute(ctx context.Context, args json.RawMessage) models.ToolExecutionResult
}

// Spec returns the ToolSpec describing t, suitable for advertising to an
// LLM provider.
func Spec(t Tool) models.ToolSpec {
	return models.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}

// FuncTool adapts a plain function into a Tool, for small tools that don't
// need their own type.
type FuncTool struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult
}

// NewFuncTool constructs a Tool backed by fn.
func NewFuncTool(name, description string, schema json.RawMessage, fn func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult) *FuncTool {
	return &FuncTool{name: name, description: description, schema: schema, fn: fn}
}

func (t *FuncTool) Name() string            { return t.name }
func (t *FuncTool) Description() string     { return t.description }
func (t *FuncTool) Schema() json.RawMessage { return t.schema }
func (t *FuncTool) Execute(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
	return t.fn(ctx, args)
}
