package llmprovider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertAnthropicMessages_SkipsSystemRole(t *testing.T) {
	out, err := convertAnthropicMessages([]Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestConvertAnthropicMessages_RejectsInvalidToolCallInput(t *testing.T) {
	_, err := convertAnthropicMessages([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "disasm", Input: json.RawMessage(`not json`)}}},
	})
	assert.Error(t, err)
}

func TestConvertAnthropicTools_RejectsInvalidSchema(t *testing.T) {
	_, err := convertAnthropicTools([]ToolDef{{Name: "broken", Schema: json.RawMessage(`not json`)}})
	assert.Error(t, err)
}

func TestClassifyAnthropicError_RetriesOnTimeout(t *testing.T) {
	assert.True(t, classifyAnthropicError(assertErr{"request timeout"}))
	assert.False(t, classifyAnthropicError(assertErr{"invalid request"}))
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
