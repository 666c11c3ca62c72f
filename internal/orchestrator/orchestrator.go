// Package orchestrator dispatches named subagents as nested agent loops,
// each with a fresh ephemeral context and a tool registry restricted to
// its own allowed tools, and keeps the shared internal/knowledge model
// agents record observations, hypotheses, and findings into. It is the
// recursive-delegation layer above internal/agentloop: a subagent is just
// another agentloop.Loop run, seeded and torn down by this package's
// dispatch_subagent tool.
package orchestrator

import (
	"sync"

	"github.com/reagent-go/reagent/internal/knowledge"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/internal/wire"
)

// AgentDefinition names a subagent the orchestrator can dispatch to:
// its own system prompt, the subset of the parent registry's tools it
// may use, and its step budget.
type AgentDefinition struct {
	Name         string
	SystemPrompt string
	AllowedTools []string
	MaxSteps     int

	// DynamicFocus narrows the knowledge snapshot injected into this
	// agent's system prompt to hypotheses still needing verification,
	// matching the dynamic-analysis subagent's narrower need (see
	// internal/knowledge.Snapshot.PromptSummary).
	DynamicFocus bool
}

// Orchestrator holds the registered subagent definitions and the shared
// collaborators every dispatched subagent run needs: the provider driving
// its nested loop, the parent tool registry its restricted subset is cut
// from, the wire its activity is tagged onto, and the knowledge model it
// reads and writes.
type Orchestrator struct {
	mu       sync.RWMutex
	agents   map[string]AgentDefinition
	provider llmprovider.Provider
	registry *toolregistry.Registry
	wire     *wire.Wire
	model    *knowledge.Model

	// ContextDir holds the ephemeral per-dispatch context files. Each
	// dispatch_subagent call creates one file here and deletes it
	// (best-effort) on exit.
	ContextDir string
}

// New constructs an Orchestrator. registry is the parent's full tool
// registry; each dispatched subagent gets a fresh registry containing
// only the tools named in its AgentDefinition.AllowedTools.
func New(provider llmprovider.Provider, registry *toolregistry.Registry, w *wire.Wire, model *knowledge.Model, contextDir string) *Orchestrator {
	return &Orchestrator{
		agents:     make(map[string]AgentDefinition),
		provider:   provider,
		registry:   registry,
		wire:       w,
		model:      model,
		ContextDir: contextDir,
	}
}

// RegisterAgent adds a subagent definition, replacing any existing
// definition with the same name.
func (o *Orchestrator) RegisterAgent(def AgentDefinition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agents[def.Name] = def
}

// Agent returns a registered subagent definition by name.
func (o *Orchestrator) Agent(name string) (AgentDefinition, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	def, ok := o.agents[name]
	return def, ok
}

// Tools returns the two tools dispatch_subagent and update_model that
// this orchestrator exposes to whichever agent registry it is wired
// into.
func (o *Orchestrator) Tools() []toolregistry.Tool {
	return []toolregistry.Tool{
		newDispatchSubagentTool(o),
		newUpdateModelTool(o),
	}
}

// restrictedRegistry builds a fresh registry containing only the named
// tools, copied from the parent registry. Unlike Registry.Subset (which
// only narrows what's advertised to the model), this actually prevents a
// subagent's nested Dispatch from reaching a tool outside its allowance,
// since toolregistry.Registry.Get only ever sees what was registered into
// it.
func (o *Orchestrator) restrictedRegistry(names []string) *toolregistry.Registry {
	sub := toolregistry.New()
	sub.OverflowDir = o.registry.OverflowDir
	sub.MaxConcurrency = o.registry.MaxConcurrency
	for _, n := range names {
		if t, ok := o.registry.Get(n); ok {
			// Registration only fails on an uncompilable schema, which the
			// parent registry already validated at its own Register call.
			_ = sub.Register(t)
		}
	}
	return sub
}

func (o *Orchestrator) knowledgeModel() *knowledge.Model { return o.model }

func (o *Orchestrator) wireBus() *wire.Wire { return o.wire }
