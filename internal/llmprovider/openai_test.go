package llmprovider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openai "github.com/sashabaranov/go-openai"
)

func TestConvertOpenAIMessages_PrependsSystemPrompt(t *testing.T) {
	out := convertOpenAIMessages(nil, "be concise")
	require.Len(t, out, 1)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, "be concise", out[0].Content)
}

func TestConvertOpenAIMessages_ToolResultsBecomeToolRole(t *testing.T) {
	out := convertOpenAIMessages([]Message{
		{Role: "tool", ToolResults: []ToolResult{{ToolCallID: "c1", Content: "ok"}}},
	}, "")
	require.Len(t, out, 1)
	assert.Equal(t, openai.ChatMessageRoleTool, out[0].Role)
	assert.Equal(t, "c1", out[0].ToolCallID)
}

func TestConvertOpenAIMessages_AssistantCarriesToolCalls(t *testing.T) {
	out := convertOpenAIMessages([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "disasm", Input: json.RawMessage(`{"addr":"0x1000"}`)}}},
	}, "")
	require.Len(t, out, 1)
	require.Len(t, out[0].ToolCalls, 1)
	assert.Equal(t, "disasm", out[0].ToolCalls[0].Function.Name)
}

func TestConvertOpenAITools_FallsBackToEmptySchemaOnInvalidJSON(t *testing.T) {
	out := convertOpenAITools([]ToolDef{{Name: "broken", Schema: json.RawMessage(`not json`)}})
	require.Len(t, out, 1)
	assert.Equal(t, "broken", out[0].Function.Name)
	assert.NotNil(t, out[0].Function.Parameters)
}
