package llmagent

import (
	"context"

	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/pkg/models"
)

// StepResult is the outcome of one Step call: the assistant message
// Generate produced, the tool-result messages from dispatching its tool
// calls (one message per call, in call order, per the data model's "tool
// messages carry exactly one tool_result" invariant), the stop reason,
// and token usage.
type StepResult struct {
	Assistant   *models.Message
	ToolResults []*models.Message
	StopReason  string
	Usage       Usage

	// Revert is set when one of the dispatched tool calls raised the
	// D-Mail control-flow signal. The caller (internal/agentloop) must
	// check this before treating ToolResults as authoritative: the step
	// is being unwound, not completed.
	Revert *models.RevertSignal
}

// Step runs one generate-then-dispatch cycle: it calls Generate, and if
// the resulting message carries tool calls, dispatches them concurrently
// through registry and wraps each DispatchedResult back into a tool
// Message positionally matched to its originating call. Tool results
// reach the caller in call order regardless of completion order, since
// toolregistry.Dispatch preserves call order itself. If a dispatched
// call raised the revert signal, it is surfaced via StepResult.Revert
// rather than an error, per the D-Mail sum-typed-return design.
func Step(ctx context.Context, provider llmprovider.Provider, registry *toolregistry.Registry, systemPrompt string, messages []*models.Message, tools []models.ToolSpec, cb Callbacks) (*StepResult, error) {
	assistant, usage, stopReason, err := Generate(ctx, provider, systemPrompt, messages, tools, cb)
	if err != nil {
		return nil, err
	}

	toolCallParts := assistant.ToolCalls()
	if len(toolCallParts) == 0 {
		return &StepResult{Assistant: assistant, StopReason: StopEndTurn, Usage: usage}, nil
	}

	calls := make([]toolregistry.DispatchedCall, len(toolCallParts))
	for i, p := range toolCallParts {
		calls[i] = toolregistry.DispatchedCall{ID: p.ToolCallID, ToolName: p.ToolName, Arguments: p.ToolArguments}
	}

	results, revert := registry.Dispatch(ctx, calls)
	if revert != nil {
		return &StepResult{Assistant: assistant, StopReason: StopToolCalls, Usage: usage, Revert: revert}, nil
	}

	toolMessages := make([]*models.Message, len(results))
	for i, r := range results {
		toolMessages[i] = models.NewMessage(models.RoleTool, models.ToolResultPart(r.ID, r.Result.Output, r.Result.IsError()))
	}

	return &StepResult{
		Assistant:   assistant,
		ToolResults: toolMessages,
		StopReason:  StopToolCalls,
		Usage:       usage,
	}, nil
}
