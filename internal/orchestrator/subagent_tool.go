package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/internal/agentloop"
	"github.com/reagent-go/reagent/internal/llmagent"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/internal/wire"
	"github.com/reagent-go/reagent/pkg/models"
)

// dispatchSubagentArgs is the parameter schema for the dispatch_subagent
// tool: a named subagent, the task it's being asked to do, and optional
// extra context to seed alongside the task.
type dispatchSubagentArgs struct {
	AgentName string `json:"agent_name" jsonschema:"required,description=Name of the registered subagent to dispatch"`
	Task      string `json:"task" jsonschema:"required,description=The task description the subagent should accomplish"`
	Context   string `json:"context,omitempty" jsonschema:"description=Optional additional context for the subagent"`
}

func newDispatchSubagentTool(o *Orchestrator) *toolregistry.FuncTool {
	schema := toolregistry.GenerateSchema[dispatchSubagentArgs]()
	return toolregistry.NewFuncTool(
		"dispatch_subagent",
		"Delegate a task to a named specialist subagent, running it as a nested agent loop with its own restricted tool set and a fresh ephemeral context seeded with the task.",
		schema,
		func(ctx context.Context, raw json.RawMessage) models.ToolExecutionResult {
			return dispatchSubagent(ctx, o, raw)
		},
	)
}

func dispatchSubagent(ctx context.Context, o *Orchestrator, raw json.RawMessage) models.ToolExecutionResult {
	var args dispatchSubagentArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return models.Err(fmt.Sprintf("dispatch_subagent: invalid arguments: %v", err))
	}

	def, ok := o.Agent(args.AgentName)
	if !ok {
		return models.Err(fmt.Sprintf("dispatch_subagent: unknown subagent %q", args.AgentName))
	}

	subPath := filepath.Join(o.ContextDir, fmt.Sprintf("subagent-%s-%s.jsonl", def.Name, uuid.NewString()))
	subContext, err := agentcontext.New(subPath)
	if err != nil {
		return models.Err(fmt.Sprintf("dispatch_subagent: create ephemeral context: %v", err))
	}
	defer os.Remove(subPath) // best-effort; the ephemeral log never outlives this call

	seed := args.Task
	if args.Context != "" {
		seed = fmt.Sprintf("%s\n\nAdditional context:\n%s", seed, args.Context)
	}
	if err := subContext.Append(models.NewMessage(models.RoleUser, models.TextPart(seed))); err != nil {
		return models.Err(fmt.Sprintf("dispatch_subagent: seed context: %v", err))
	}

	snapshot := o.knowledgeModel().Snapshot()
	systemPrompt := fmt.Sprintf("%s\n\n%s", def.SystemPrompt, snapshot.PromptSummary(def.DynamicFocus))

	subRegistry := o.restrictedRegistry(def.AllowedTools)
	w := o.wireBus()

	if w != nil {
		w.Send(models.NewSubagentBeginEvent(def.Name))
	}

	loop := agentloop.New(o.provider, subRegistry, subContext, nil, ObserversForWire(w, def.Name))
	outcome, runErr := loop.Run(ctx, agentloop.Agent{
		Name:         def.Name,
		SystemPrompt: systemPrompt,
		AllowedTools: def.AllowedTools,
		MaxSteps:     def.MaxSteps,
	})

	if w != nil {
		w.Send(models.NewSubagentEndEvent(def.Name))
	}

	if runErr != nil {
		return models.Err(fmt.Sprintf("dispatch_subagent: %s: %v", def.Name, runErr))
	}

	finalText := lastAssistantText(subContext.Messages())
	return models.Ok(fmt.Sprintf("%s\n\n[subagent %q outcome: %s]", finalText, def.Name, outcome))
}

// lastAssistantText returns the text of the last assistant message in
// messages, or "" if there is none — the subagent's final answer, which
// becomes the dispatch_subagent tool result the parent agent sees.
func lastAssistantText(messages []*models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant {
			return messages[i].Text()
		}
	}
	return ""
}

// ObserversForWire adapts an agentloop.Observers bundle onto a wire,
// tagging every forwarded event with agentName so a UI consumer can tell
// which agent produced it. w may be nil, in which case every hook is a
// no-op. Exported so cmd/reagent can wire the same bundle for the
// top-level agent loop, not just nested subagent dispatches.
func ObserversForWire(w *wire.Wire, agentName string) agentloop.Observers {
	if w == nil {
		return agentloop.Observers{}
	}
	return agentloop.Observers{
		OnStepBegin: func(stepNo int, name string) { w.Send(models.NewStepBeginEvent(stepNo, name)) },
		OnText:      func(text string) { w.Send(models.NewTextEvent(text, agentName)) },
		OnThinking:  func(text string) { w.Send(models.NewThinkingEvent(text, agentName)) },
		OnToolCall: func(p models.Part) {
			w.Send(models.NewToolCallEvent(p.ToolCallID, p.ToolName, string(p.ToolArguments), agentName))
		},
		OnToolResult: func(p models.Part) {
			w.Send(models.NewToolResultEvent(p.ToolCallID, "", p.ToolResultContent, p.ToolResultIsError, agentName))
		},
		OnStep: func(stepNo int, usage llmagent.Usage) {},
		OnDMail: func(checkpointID int, message string) {
			w.Send(models.NewDMailEvent(checkpointID, message))
		},
	}
}
