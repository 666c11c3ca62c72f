// Package llmagent implements the streaming primitive that sits between
// the agent loop and an llmprovider.Provider: it assembles a provider's
// chunk stream into a single well-formed assistant Message, retries
// transient stream failures with backoff, dispatches the resulting tool
// calls concurrently through a tool registry, and adapts a single
// tool-less Generate call to the context store's Summarizer interface
// for compaction.
package llmagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/reagent-go/reagent/internal/backoff"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/pkg/models"
)

// Stop reasons surfaced by Generate and Step, mirroring finish_reason on
// the wire.
const (
	StopEndTurn   = "end_turn"
	StopToolCalls = "tool_calls"
)

// maxGenerateAttempts bounds how many times Generate reopens the stream
// after a transient failure before giving up.
const maxGenerateAttempts = 3

// Usage reports token accounting for one Generate call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Callbacks fire live as a Generate call streams, mirroring the agent
// loop's on_text/on_thinking/on_tool_call observers. Every field is
// optional; nil callbacks are simply skipped.
type Callbacks struct {
	OnText     func(text string)
	OnThinking func(text string)
	OnToolCall func(part models.Part)
}

func (cb Callbacks) text(s string) {
	if cb.OnText != nil && s != "" {
		cb.OnText(s)
	}
}

func (cb Callbacks) thinking(s string) {
	if cb.OnThinking != nil && s != "" {
		cb.OnThinking(s)
	}
}

func (cb Callbacks) toolCall(p models.Part) {
	if cb.OnToolCall != nil {
		cb.OnToolCall(p)
	}
}

// Generate opens a streaming completion against provider and assembles
// the chunk sequence into one assistant Message, ordering parts
// thinking-before-text-before-tool_calls per the Message invariant.
// Transient stream failures (connection resets, 5xx, rate limits) are
// retried with exponential backoff up to maxGenerateAttempts; a
// classification failure or an error from a prior attempt that wasn't
// marked retryable is returned immediately.
func Generate(ctx context.Context, provider llmprovider.Provider, systemPrompt string, messages []*models.Message, tools []models.ToolSpec, cb Callbacks) (*models.Message, Usage, string, error) {
	req := &llmprovider.Request{
		Model:     provider.DefaultModel(),
		System:    systemPrompt,
		Messages:  toProviderMessages(messages),
		Tools:     toProviderTools(tools),
		MaxTokens: 4096,
	}

	var lastErr error
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, Usage{}, "", err
		}

		msg, usage, finish, err := generateOnce(ctx, provider, req, cb)
		if err == nil {
			return msg, usage, finish, nil
		}

		lastErr = err
		if !llmprovider.IsRetryable(err) {
			return nil, Usage{}, "", err
		}
		if attempt < maxGenerateAttempts {
			if sleepErr := backoff.SleepWithBackoff(ctx, backoff.DefaultPolicy(), attempt); sleepErr != nil {
				return nil, Usage{}, "", sleepErr
			}
		}
	}
	return nil, Usage{}, "", fmt.Errorf("llmagent: generate: exhausted %d attempts: %w", maxGenerateAttempts, lastErr)
}

// generateOnce drives a single stream-open attempt to completion,
// yielding callbacks as chunks arrive.
func generateOnce(ctx context.Context, provider llmprovider.Provider, req *llmprovider.Request, cb Callbacks) (*models.Message, Usage, string, error) {
	chunks, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, Usage{}, "", err
	}

	var parts []models.Part
	var text strings.Builder
	var thinking strings.Builder
	var thinkingSignature string
	usage := Usage{}
	finish := StopEndTurn

	flushText := func() {
		if text.Len() > 0 {
			parts = append(parts, models.TextPart(text.String()))
			text.Reset()
		}
	}
	flushThinking := func() {
		if thinking.Len() > 0 {
			parts = append(parts, models.ThinkingPart(thinking.String(), thinkingSignature))
			thinking.Reset()
			thinkingSignature = ""
		}
	}

	for chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, Usage{}, "", err
		}
		if chunk.Error != nil {
			return nil, Usage{}, "", chunk.Error
		}

		switch {
		case chunk.ThinkingStart:
			// no-op: the builder starts empty already.
		case chunk.Thinking != "":
			thinking.WriteString(chunk.Thinking)
			cb.thinking(chunk.Thinking)
		case chunk.ThinkingEnd:
			flushThinking()
		case chunk.Text != "":
			flushThinking()
			text.WriteString(chunk.Text)
			cb.text(chunk.Text)
		case chunk.ToolCall != nil:
			flushThinking()
			flushText()
			part := models.ToolCallPart(chunk.ToolCall.ID, chunk.ToolCall.Name, chunk.ToolCall.Input)
			parts = append(parts, part)
			cb.toolCall(part)
			finish = StopToolCalls
		case chunk.Done:
			if chunk.FinishReason != "" {
				finish = normalizeFinishReason(chunk.FinishReason, finish)
			}
			usage = Usage{InputTokens: chunk.InputTokens, OutputTokens: chunk.OutputTokens}
		}
	}

	flushThinking()
	flushText()

	return models.NewMessage(models.RoleAssistant, parts...), usage, finish, nil
}

// normalizeFinishReason maps a provider's native finish_reason onto the
// two stop reasons the agent loop cares about, without discarding a
// tool_calls classification already established by chunk.ToolCall parts.
func normalizeFinishReason(native string, current string) string {
	if current == StopToolCalls {
		return StopToolCalls
	}
	switch native {
	case "tool_calls", "tool_use":
		return StopToolCalls
	default:
		return StopEndTurn
	}
}

func toProviderTools(tools []models.ToolSpec) []llmprovider.ToolDef {
	if len(tools) == 0 {
		return nil
	}
	out := make([]llmprovider.ToolDef, len(tools))
	for i, t := range tools {
		out[i] = llmprovider.ToolDef{Name: t.Name, Description: t.Description, Schema: t.Parameters}
	}
	return out
}

// toProviderMessages flattens the store's heterogeneous Message/Part
// shape into the provider's role-oriented Message shape: a tool message's
// single tool_result becomes a ToolResult entry, an assistant message's
// text parts concatenate into Content and its tool_call parts become
// ToolCalls, and thinking parts are dropped since neither adapter round-
// trips reasoning blocks back into a later request.
func toProviderMessages(messages []*models.Message) []llmprovider.Message {
	out := make([]llmprovider.Message, 0, len(messages))
	for _, m := range messages {
		pm := llmprovider.Message{Role: string(m.Role)}
		for _, p := range m.Parts {
			switch p.Kind {
			case models.PartText:
				pm.Content += p.Text
			case models.PartToolCall:
				pm.ToolCalls = append(pm.ToolCalls, llmprovider.ToolCall{ID: p.ToolCallID, Name: p.ToolName, Input: p.ToolArguments})
			case models.PartToolResult:
				pm.ToolResults = append(pm.ToolResults, llmprovider.ToolResult{ToolCallID: p.ToolCallID, Content: p.ToolResultContent, IsError: p.ToolResultIsError})
			}
		}
		out = append(out, pm)
	}
	return out
}
