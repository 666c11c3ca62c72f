package agentloop

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/internal/llmagent"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/pkg/models"
)

// scriptedProvider replays one attempt's worth of chunks per Complete
// call, cycling if exhausted, so loop tests can script a short
// conversation without a real backend.
type scriptedProvider struct {
	attempts [][]*llmprovider.Chunk
	calls    int
}

func (p *scriptedProvider) Name() string             { return "scripted" }
func (p *scriptedProvider) DefaultModel() string      { return "test-model" }
func (p *scriptedProvider) ContextWindow(string) int { return 100000 }

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

func newTestContext(t *testing.T) *agentcontext.Context {
	t.Helper()
	c, err := agentcontext.New(filepath.Join(t.TempDir(), "context.jsonl"))
	require.NoError(t, err)
	return c
}

func TestLoop_CompletesWhenNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{attempts: [][]*llmprovider.Chunk{
		{{Text: "all done"}, {Done: true, FinishReason: "stop"}},
	}}
	registry := toolregistry.New()
	ctxStore := newTestContext(t)

	loop := New(provider, registry, ctxStore, nil, Observers{})
	outcome, err := loop.Run(context.Background(), Agent{Name: "main", MaxSteps: 5})
	require.NoError(t, err)
	assert.Equal(t, Complete, outcome)
	assert.Len(t, ctxStore.Messages(), 1)
}

func TestLoop_ReachesMaxStepsWhenAlwaysCallingTools(t *testing.T) {
	provider := &scriptedProvider{attempts: [][]*llmprovider.Chunk{
		{{ToolCall: &llmprovider.ToolCall{ID: "c1", Name: "ping", Input: json.RawMessage(`{}`)}}, {Done: true, FinishReason: "tool_calls"}},
	}}
	registry := toolregistry.New()
	require.NoError(t, registry.Register(toolregistry.NewFuncTool("ping", "pings", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult { return models.Ok("pong") })))
	ctxStore := newTestContext(t)

	loop := New(provider, registry, ctxStore, nil, Observers{})
	outcome, err := loop.Run(context.Background(), Agent{Name: "main", MaxSteps: 3})
	require.NoError(t, err)
	assert.Equal(t, MaxSteps, outcome)
	assert.Equal(t, 3, provider.calls)
}

func TestLoop_HandlesDMailRevertWithoutAdvancingStepCount(t *testing.T) {
	provider := &scriptedProvider{attempts: [][]*llmprovider.Chunk{
		{{ToolCall: &llmprovider.ToolCall{ID: "c1", Name: "revert", Input: json.RawMessage(`{}`)}}, {Done: true, FinishReason: "tool_calls"}},
		{{Text: "recovered after revert"}, {Done: true, FinishReason: "stop"}},
	}}
	registry := toolregistry.New()
	require.NoError(t, registry.Register(toolregistry.NewFuncTool("revert", "requests revert", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
			panic(&models.RevertSignal{CheckpointID: 0, Message: "try again"})
		})))
	ctxStore := newTestContext(t)

	var dmailCalls int
	loop := New(provider, registry, ctxStore, nil, Observers{
		OnDMail: func(checkpointID int, message string) { dmailCalls++ },
	})

	outcome, err := loop.Run(context.Background(), Agent{Name: "main", MaxSteps: 5})
	require.NoError(t, err)
	assert.Equal(t, Complete, outcome)
	assert.Equal(t, 1, dmailCalls)

	messages := ctxStore.Messages()
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0].Text(), "D-Mail")
}

func TestLoop_FiresObserverCallbacks(t *testing.T) {
	provider := &scriptedProvider{attempts: [][]*llmprovider.Chunk{
		{{Text: "hello"}, {Done: true, FinishReason: "stop"}},
	}}
	registry := toolregistry.New()
	ctxStore := newTestContext(t)

	var sawStepBegin, sawStep bool
	loop := New(provider, registry, ctxStore, nil, Observers{
		OnStepBegin: func(stepNo int, agentName string) { sawStepBegin = true },
		OnStep:      func(stepNo int, usage llmagent.Usage) { sawStep = true },
	})

	outcome, err := loop.Run(context.Background(), Agent{Name: "main", MaxSteps: 5})
	require.NoError(t, err)
	assert.Equal(t, Complete, outcome)
	assert.True(t, sawStepBegin)
	assert.True(t, sawStep)
}
