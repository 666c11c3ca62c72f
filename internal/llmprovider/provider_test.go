package llmprovider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable_ClassifiesWrappedErrors(t *testing.T) {
	assert.True(t, IsRetryable(wrapRetryable(errors.New("timeout"), true)))
	assert.False(t, IsRetryable(wrapRetryable(errors.New("bad request"), false)))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain error, not classified")))
}

func TestOrderedToolCalls_PreservesIndexOrder(t *testing.T) {
	calls := map[int]*ToolCall{
		2: {ID: "c2", Name: "third"},
		0: {ID: "c0", Name: "first"},
		1: {ID: "c1", Name: "second"},
	}
	ordered := orderedToolCalls(calls)
	assert.Equal(t, []string{"first", "second", "third"}, []string{ordered[0].Name, ordered[1].Name, ordered[2].Name})
}

func TestOrderedToolCalls_SkipsIncompleteEntries(t *testing.T) {
	calls := map[int]*ToolCall{
		0: {ID: "c0", Name: "complete"},
		1: {ID: "", Name: ""},
	}
	ordered := orderedToolCalls(calls)
	assert.Len(t, ordered, 1)
	assert.Equal(t, "complete", ordered[0].Name)
}

func TestClassifyOpenAIError(t *testing.T) {
	assert.True(t, classifyOpenAIError(errors.New("429 rate limit exceeded")))
	assert.True(t, classifyOpenAIError(errors.New("request timeout")))
	assert.False(t, classifyOpenAIError(errors.New("invalid api key")))
}
