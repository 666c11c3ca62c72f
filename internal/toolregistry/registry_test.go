package toolregistry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reagent-go/reagent/pkg/models"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required"`
}

func echoTool() Tool {
	return NewFuncTool("echo", "echoes its input", GenerateSchema[echoArgs](), func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
		var a echoArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return models.Rejected(err.Error())
		}
		return models.Ok(a.Text)
	})
}

func TestRegistry_DispatchOneRunsValidCall(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoTool()))

	res, revert := r.DispatchOne(context.Background(), DispatchedCall{
		ID: "c1", ToolName: "echo", Arguments: json.RawMessage(`{"text":"hi"}`),
	})

	assert.Nil(t, revert)
	assert.Equal(t, "c1", res.ID)
	assert.False(t, res.Result.IsError())
	assert.Equal(t, "hi", res.Result.Output)
}

func TestRegistry_DispatchOneRejectsUnknownTool(t *testing.T) {
	r := New()
	res, revert := r.DispatchOne(context.Background(), DispatchedCall{ID: "c1", ToolName: "nope"})
	assert.Nil(t, revert)
	assert.True(t, res.Result.IsError())
	assert.Equal(t, models.ToolResultRejected, res.Result.Status)
}

func TestRegistry_DispatchOneRejectsInvalidArguments(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoTool()))

	res, revert := r.DispatchOne(context.Background(), DispatchedCall{
		ID: "c1", ToolName: "echo", Arguments: json.RawMessage(`{}`),
	})
	assert.Nil(t, revert)
	assert.True(t, res.Result.IsError())
	assert.Equal(t, models.ToolResultRejected, res.Result.Status)
}

func TestRegistry_DispatchOneRecoversRevertSignal(t *testing.T) {
	r := New()
	tool := NewFuncTool("revert", "requests a revert", GenerateSchema[echoArgs](), func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
		panic(&models.RevertSignal{CheckpointID: 2, Message: "try a different approach"})
	})
	require.NoError(t, r.Register(tool))

	_, revert := r.DispatchOne(context.Background(), DispatchedCall{
		ID: "c1", ToolName: "revert", Arguments: json.RawMessage(`{"text":"x"}`),
	})
	require.NotNil(t, revert)
	assert.Equal(t, 2, revert.CheckpointID)
	assert.Equal(t, "try a different approach", revert.Message)
}

func TestRegistry_DispatchOneRecoversOrdinaryPanicAsError(t *testing.T) {
	r := New()
	tool := NewFuncTool("boom", "panics", GenerateSchema[echoArgs](), func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
		panic("kaboom")
	})
	require.NoError(t, r.Register(tool))

	res, revert := r.DispatchOne(context.Background(), DispatchedCall{
		ID: "c1", ToolName: "boom", Arguments: json.RawMessage(`{"text":"x"}`),
	})
	assert.Nil(t, revert)
	assert.True(t, res.Result.IsError())
	assert.Contains(t, res.Result.Output, "kaboom")
}

func TestRegistry_DispatchPreservesCallOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoTool()))

	calls := make([]DispatchedCall, 20)
	for i := range calls {
		calls[i] = DispatchedCall{
			ID:        string(rune('a' + i)),
			ToolName:  "echo",
			Arguments: json.RawMessage(`{"text":"` + string(rune('a'+i)) + `"}`),
		}
	}

	results, revert := r.Dispatch(context.Background(), calls)
	assert.Nil(t, revert)
	require.Len(t, results, 20)
	for i, res := range results {
		assert.Equal(t, calls[i].ID, res.ID)
		assert.Equal(t, string(rune('a'+i)), res.Result.Output)
	}
}

func TestRegistry_TruncatesOversizedOutput(t *testing.T) {
	r := New()
	big := strings.Repeat("x", MaxOutputBytes+1000)
	tool := NewFuncTool("big", "returns huge output", GenerateSchema[echoArgs](), func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
		return models.Ok(big)
	})
	require.NoError(t, r.Register(tool))

	res, revert := r.DispatchOne(context.Background(), DispatchedCall{
		ID: "c1", ToolName: "big", Arguments: json.RawMessage(`{"text":"x"}`),
	})

	assert.Nil(t, revert)
	assert.Less(t, len(res.Result.Output), len(big))
	assert.Contains(t, res.Result.Output, "truncated")
}

func TestRegistry_SubsetRestrictsToolSurface(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoTool()))
	require.NoError(t, r.Register(NewFuncTool("other", "another tool", GenerateSchema[echoArgs](), func(ctx context.Context, args json.RawMessage) models.ToolExecutionResult {
		return models.Ok("")
	})))

	specs := r.Subset([]string{"echo", "missing"})
	require.Len(t, specs, 1)
	assert.Equal(t, "echo", specs[0].Name)
}
