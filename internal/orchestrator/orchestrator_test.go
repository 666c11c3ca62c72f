package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reagent-go/reagent/internal/knowledge"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/internal/wire"
	"github.com/reagent-go/reagent/pkg/models"
)

// scriptedProvider replays one attempt's worth of chunks per Complete
// call, clamping to the last attempt once exhausted.
type scriptedProvider struct {
	attempts [][]*llmprovider.Chunk
	calls    int
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) ContextWindow(string) int {
	return 100000
}

func (p *scriptedProvider) Complete(ctx context.Context, req *llmprovider.Request) (<-chan *llmprovider.Chunk, error) {
	idx := p.calls
	if idx >= len(p.attempts) {
		idx = len(p.attempts) - 1
	}
	p.calls++
	out := make(chan *llmprovider.Chunk, len(p.attempts[idx]))
	for _, c := range p.attempts[idx] {
		out <- c
	}
	close(out)
	return out, nil
}

func newOrchestratorForTest(t *testing.T, provider llmprovider.Provider) (*Orchestrator, *toolregistry.Registry) {
	t.Helper()
	registry := toolregistry.New()
	require.NoError(t, registry.Register(toolregistry.NewFuncTool("triage_tool", "inspects the binary", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult { return models.Ok("triaged") })))

	o := New(provider, registry, wire.New(wire.DefaultBackpressureConfig()), knowledge.New(), t.TempDir())
	return o, registry
}

func TestDispatchSubagent_RunsNestedLoopAndReturnsFinalText(t *testing.T) {
	provider := &scriptedProvider{attempts: [][]*llmprovider.Chunk{
		{{Text: "triage complete: ELF binary"}, {Done: true, FinishReason: "stop"}},
	}}
	o, _ := newOrchestratorForTest(t, provider)
	o.RegisterAgent(AgentDefinition{
		Name:         "triage",
		SystemPrompt: "You triage binaries.",
		AllowedTools: []string{"triage_tool"},
		MaxSteps:     3,
	})

	tool := newDispatchSubagentTool(o)
	args, err := json.Marshal(dispatchSubagentArgs{AgentName: "triage", Task: "identify the binary format"})
	require.NoError(t, err)

	result := tool.Execute(context.Background(), args)
	require.False(t, result.IsError())
	assert.Contains(t, result.Output, "triage complete")
	assert.Contains(t, result.Output, `outcome: complete`)
}

func TestDispatchSubagent_UnknownAgentIsAnError(t *testing.T) {
	o, _ := newOrchestratorForTest(t, &scriptedProvider{})
	tool := newDispatchSubagentTool(o)

	args, err := json.Marshal(dispatchSubagentArgs{AgentName: "ghost", Task: "anything"})
	require.NoError(t, err)

	result := tool.Execute(context.Background(), args)
	assert.True(t, result.IsError())
}

func TestDispatchSubagent_ToolSetIsRestrictedToAllowedTools(t *testing.T) {
	provider := &scriptedProvider{attempts: [][]*llmprovider.Chunk{
		{{ToolCall: &llmprovider.ToolCall{ID: "c1", Name: "forbidden_tool", Input: json.RawMessage(`{}`)}}, {Done: true, FinishReason: "tool_calls"}},
		{{Text: "done anyway"}, {Done: true, FinishReason: "stop"}},
	}}
	o, registry := newOrchestratorForTest(t, provider)
	require.NoError(t, registry.Register(toolregistry.NewFuncTool("forbidden_tool", "not allowed here", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult { return models.Ok("should not run") })))

	o.RegisterAgent(AgentDefinition{
		Name:         "triage",
		SystemPrompt: "You triage binaries.",
		AllowedTools: []string{"triage_tool"}, // forbidden_tool deliberately excluded
		MaxSteps:     3,
	})

	tool := newDispatchSubagentTool(o)
	args, err := json.Marshal(dispatchSubagentArgs{AgentName: "triage", Task: "try the forbidden tool"})
	require.NoError(t, err)

	result := tool.Execute(context.Background(), args)
	require.False(t, result.IsError())
	assert.Contains(t, result.Output, "done anyway")
}

func TestUpdateModel_RecordsObservation(t *testing.T) {
	o, _ := newOrchestratorForTest(t, &scriptedProvider{})
	tool := newUpdateModelTool(o)

	args, err := json.Marshal(updateModelArgs{Action: "obs", Description: "entry point at 0x1000", Category: "info"})
	require.NoError(t, err)

	result := tool.Execute(context.Background(), args)
	require.False(t, result.IsError())
	assert.Len(t, o.knowledgeModel().Snapshot().Observations, 1)
}

func TestUpdateModel_FindingWithHypothesisIDPromotes(t *testing.T) {
	o, _ := newOrchestratorForTest(t, &scriptedProvider{})

	hyp := o.knowledgeModel().AddHypothesis("uses AES-128-ECB", "crypto", 0.5)

	tool := newUpdateModelTool(o)
	args, err := json.Marshal(updateModelArgs{Action: "confirm", HypothesisID: hyp.ID})
	require.NoError(t, err)

	result := tool.Execute(context.Background(), args)
	require.False(t, result.IsError())

	snap := o.knowledgeModel().Snapshot()
	require.Len(t, snap.Findings, 1)
	assert.Equal(t, hyp.Description, snap.Findings[0].Description)
}

func TestUpdateModel_UnknownActionIsAnError(t *testing.T) {
	o, _ := newOrchestratorForTest(t, &scriptedProvider{})
	tool := newUpdateModelTool(o)

	args, err := json.Marshal(updateModelArgs{Action: "spelunk"})
	require.NoError(t, err)

	result := tool.Execute(context.Background(), args)
	assert.True(t, result.IsError())
}

func TestRestrictedRegistry_OnlyCopiesNamedTools(t *testing.T) {
	o, registry := newOrchestratorForTest(t, &scriptedProvider{})
	require.NoError(t, registry.Register(toolregistry.NewFuncTool("extra_tool", "extra", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult { return models.Ok("extra") })))

	restricted := o.restrictedRegistry([]string{"triage_tool"})
	_, hasTriage := restricted.Get("triage_tool")
	_, hasExtra := restricted.Get("extra_tool")
	assert.True(t, hasTriage)
	assert.False(t, hasExtra)
}
