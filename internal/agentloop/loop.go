// Package agentloop implements the step scheduler that drives one agent
// through repeated generate-dispatch-append cycles until the model stops
// requesting tools, a step cap is hit, a D-Mail revert is raised, or a
// fatal error occurs. It is the orchestration layer above
// internal/llmagent's single-step primitive and internal/agentcontext's
// persisted log.
package agentloop

import (
	"context"
	"fmt"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/internal/llmagent"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/pkg/models"
)

// Outcome is the terminal state a Run call returns.
type Outcome string

const (
	Complete Outcome = "complete"
	MaxSteps Outcome = "max_steps"
	Error    Outcome = "error"
)

// ReserveTokens is the headroom reserved against a provider's context
// window before a step triggers compaction, per spec step 1:
// estimate_tokens(context) + RESERVE > provider.context_window.
const ReserveTokens = 20000

// defaultMaxSteps applies when Agent.MaxSteps is unset, matching the
// teacher's own DefaultLoopConfig.MaxIterations.
const defaultMaxSteps = 10

// Agent describes one loop's identity and budget. max_steps is per agent,
// not per session; nested subagents carry their own Agent value and
// therefore their own budget.
type Agent struct {
	Name         string
	SystemPrompt string
	AllowedTools []string
	MaxSteps     int
}

// Observers is the bundle of callbacks a Run call fires as it
// progresses, mirroring spec.md's on_step_begin/on_text/on_thinking/
// on_tool_call/on_tool_result/on_step/on_dmail bundle. Every field is
// optional.
type Observers struct {
	OnStepBegin  func(stepNo int, agentName string)
	OnText       func(text string)
	OnThinking   func(text string)
	OnToolCall   func(part models.Part)
	OnToolResult func(part models.Part)
	OnStep       func(stepNo int, usage llmagent.Usage)
	OnDMail      func(checkpointID int, message string)
}

// CompactFunc runs one context-management pass (prune and/or compact)
// and reports what it did, so Run can keep the context under the
// provider's window without knowing anything about summarization itself.
// See NewAutoCompactFunc for the standard construction.
type CompactFunc func(ctx context.Context) (models.CompactionAction, error)

// Loop binds the collaborators one Run call needs: the provider and
// registry driving each step, the persisted context being grown, an
// optional compaction pass, and the observer bundle.
type Loop struct {
	Provider  llmprovider.Provider
	Registry  *toolregistry.Registry
	Context   *agentcontext.Context
	Compact   CompactFunc
	Observers Observers
}

// New constructs a Loop. Compact may be left nil to disable automatic
// context management.
func New(provider llmprovider.Provider, registry *toolregistry.Registry, ctxStore *agentcontext.Context, compact CompactFunc, observers Observers) *Loop {
	return &Loop{Provider: provider, Registry: registry, Context: ctxStore, Compact: compact, Observers: observers}
}

// Run drives agent through repeated steps until completion, a step cap,
// a fatal error, or the outer context is cancelled. A D-Mail revert does
// not count against the step budget: the loop reverts, injects the
// advisory message, and re-attempts the same step number.
func (l *Loop) Run(ctx context.Context, agent Agent) (Outcome, error) {
	maxSteps := agent.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	tools := l.Registry.Subset(agent.AllowedTools)
	cb := l.callbacks()

	for stepNo := 1; stepNo <= maxSteps; {
		if l.Compact != nil && l.needsCompaction() {
			if _, err := l.Compact(ctx); err != nil {
				return Error, fmt.Errorf("agentloop: compaction: %w", err)
			}
		}

		if _, err := l.Context.Checkpoint(); err != nil {
			return Error, fmt.Errorf("agentloop: checkpoint: %w", err)
		}

		if l.Observers.OnStepBegin != nil {
			l.Observers.OnStepBegin(stepNo, agent.Name)
		}

		messages := l.Context.Messages()
		result, err := llmagent.Step(ctx, l.Provider, l.Registry, agent.SystemPrompt, messages, tools, cb)
		if err != nil {
			return Error, fmt.Errorf("agentloop: step %d: %w", stepNo, err)
		}

		if result.Revert != nil {
			if err := l.revert(result.Revert); err != nil {
				return Error, err
			}
			continue // re-attempt this step number with the injected D-Mail
		}

		// Context.Grow takes no context.Context argument and so is immune
		// to the caller's cancellation by construction: it always
		// persists the assistant message and its tool results together,
		// even if ctx was cancelled mid-dispatch above.
		if err := l.Context.Grow(result.Assistant, result.ToolResults); err != nil {
			return Error, fmt.Errorf("agentloop: persist step %d: %w", stepNo, err)
		}

		for _, tr := range result.ToolResults {
			if p, ok := tr.ToolResult(); ok && l.Observers.OnToolResult != nil {
				l.Observers.OnToolResult(p)
			}
		}
		if l.Observers.OnStep != nil {
			l.Observers.OnStep(stepNo, result.Usage)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Error, ctxErr
		}

		if len(result.Assistant.ToolCalls()) == 0 {
			return Complete, nil
		}
		stepNo++
	}

	return MaxSteps, nil
}

// revert handles the D-Mail control path: fire on_dmail, roll the context
// back to the checkpoint the signal names, and inject the advisory
// message the reverted step will see on re-attempt. The target
// checkpoint is whatever the raising tool chose, which may be an earlier
// step's checkpoint, not necessarily the one just taken for this step.
func (l *Loop) revert(signal *models.RevertSignal) error {
	target := signal.CheckpointID
	if l.Observers.OnDMail != nil {
		l.Observers.OnDMail(target, signal.Message)
	}
	if err := l.Context.RevertTo(target); err != nil {
		return fmt.Errorf("agentloop: revert to checkpoint %d: %w", target, err)
	}
	if err := l.Context.AppendSystem(fmt.Sprintf("[D-Mail from your future self]: %s", signal.Message)); err != nil {
		return fmt.Errorf("agentloop: append D-Mail message: %w", err)
	}
	return nil
}

// needsCompaction implements step 1's trigger check.
func (l *Loop) needsCompaction() bool {
	window := l.Provider.ContextWindow(l.Provider.DefaultModel())
	return l.Context.EstimateTokens()+ReserveTokens > window
}

func (l *Loop) callbacks() llmagent.Callbacks {
	return llmagent.Callbacks{
		OnText:     l.Observers.OnText,
		OnThinking: l.Observers.OnThinking,
		OnToolCall: l.Observers.OnToolCall,
	}
}
