// Package llmprovider normalizes LLM backends behind one streaming contract.
// Each adapter (Anthropic, OpenAI) translates its SDK's native event stream
// into a sequence of Chunks so the agent loop never depends on a specific
// provider's wire format.
package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
)

// Provider is the interface the agent loop and the LLM streaming primitive
// consume. Implementations own retries for their own transport; the
// streaming primitive layers a second retry around a failed stream (an
// error from Complete or an Error chunk) classified as retryable by
// IsRetryable.
type Provider interface {
	// Name returns the provider identifier used in logging and metrics.
	Name() string

	// Complete opens a streaming completion and returns a channel of
	// Chunks. The channel is closed after a Done or Error chunk.
	Complete(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// ContextWindow returns the token budget for model, or a provider
	// default if model is unrecognized.
	ContextWindow(model string) int

	// DefaultModel returns the model used when a Request leaves Model
	// empty.
	DefaultModel() string
}

// Message is one turn of conversation handed to a Provider, already
// flattened from the richer models.Message/Part shape into the
// role/content/tool-calls/tool-results shape every chat completion API
// expects.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall is a complete (not incremental) tool invocation request.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult answers a prior ToolCall.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// ToolDef is the name/description/schema a Provider advertises to the
// model for tool calling.
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Request is one completion request.
type Request struct {
	Model                string
	System               string
	Messages             []Message
	Tools                []ToolDef
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// Chunk is one normalized event from a streaming completion. Exactly the
// field(s) relevant to the event are set; the rest are zero, following the
// same tagged-shape convention as models.Part.
type Chunk struct {
	Text          string
	ThinkingStart bool
	Thinking      string
	ThinkingEnd   bool
	ToolCall      *ToolCall
	Done          bool
	FinishReason  string
	InputTokens   int
	OutputTokens  int
	Error         error
}

// IsRetryable classifies whether a stream-open error is a transient
// connect/timeout/server failure worth retrying, versus a logical error
// (bad request, auth failure) that never improves on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re interface{ Retryable() bool }
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// retryableError wraps an error with an explicit retry classification, set
// by each adapter's own status-code/message inspection.
type retryableError struct {
	err       error
	retryable bool
}

func (e *retryableError) Error() string   { return e.err.Error() }
func (e *retryableError) Unwrap() error   { return e.err }
func (e *retryableError) Retryable() bool { return e.retryable }

// wrapRetryable tags err with whether the streaming primitive should retry
// opening the stream.
func wrapRetryable(err error, retryable bool) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err, retryable: retryable}
}
