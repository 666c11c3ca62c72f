// Package models provides the shared domain types for the reagent control
// plane: conversation messages, tool contracts, knowledge records, and wire
// events. Types here are passed between the agent loop, the context store,
// the tool registry, and the event wire, so they carry no package-specific
// behavior beyond small, pure helpers.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind discriminates the variants of a Part's tagged union.
type PartKind string

const (
	PartText       PartKind = "text"
	PartThinking   PartKind = "thinking"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one element of a Message's heterogeneous content. Exactly the
// fields matching Kind are meaningful; the others are zero. This mirrors a
// closed tagged union with serialization flattened into stable field names,
// per the data model's design note on heterogeneous message content.
type Part struct {
	Kind PartKind `json:"kind"`

	// Text holds the payload for PartText, or the reasoning text for
	// PartThinking.
	Text string `json:"text,omitempty"`

	// ThinkingSignature is an opaque provider-specific signature that
	// allows a thinking block to be round-tripped back to the provider
	// on a later turn. Only meaningful for PartThinking.
	ThinkingSignature string `json:"thinking_signature,omitempty"`

	// ToolCallID identifies a tool invocation. Set on both PartToolCall
	// (the call being made) and PartToolResult (the result it answers).
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the tool being invoked. Only meaningful for PartToolCall.
	ToolName string `json:"tool_name,omitempty"`

	// ToolArguments is the raw JSON argument blob the model produced.
	// Only meaningful for PartToolCall.
	ToolArguments json.RawMessage `json:"tool_arguments,omitempty"`

	// ToolResultContent is the content returned by the tool dispatch
	// pipeline. Only meaningful for PartToolResult.
	ToolResultContent string `json:"tool_result_content,omitempty"`

	// ToolResultIsError marks a PartToolResult as an error result.
	ToolResultIsError bool `json:"tool_result_is_error,omitempty"`
}

// TextPart constructs a text content part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ThinkingPart constructs a thinking content part, optionally carrying an
// opaque provider signature for round-tripping.
func ThinkingPart(text, signature string) Part {
	return Part{Kind: PartThinking, Text: text, ThinkingSignature: signature}
}

// ToolCallPart constructs a tool_call content part.
func ToolCallPart(id, name string, arguments json.RawMessage) Part {
	return Part{Kind: PartToolCall, ToolCallID: id, ToolName: name, ToolArguments: arguments}
}

// ToolResultPart constructs a tool_result content part answering callID.
func ToolResultPart(callID, content string, isError bool) Part {
	return Part{Kind: PartToolResult, ToolCallID: callID, ToolResultContent: content, ToolResultIsError: isError}
}

// Message is a single turn in a Context: a role plus an ordered list of
// content parts.
type Message struct {
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a Message with the given role and parts, stamping
// CreatedAt to now unless the caller overrides it afterward.
func NewMessage(role Role, parts ...Part) *Message {
	return &Message{Role: role, Parts: parts, CreatedAt: time.Now()}
}

// Text concatenates all PartText parts in order.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns every PartToolCall in the message, in order.
func (m *Message) ToolCalls() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}

// ToolResult returns the single PartToolResult in the message, if any.
// Tool messages carry exactly one tool_result per the data model invariant.
func (m *Message) ToolResult() (Part, bool) {
	for _, p := range m.Parts {
		if p.Kind == PartToolResult {
			return p, true
		}
	}
	return Part{}, false
}

// Validate checks the Message data model invariants: a tool_result must
// answer a known prior tool_call id, assistant messages order
// thinking-before-text-before-tool_calls, and tool messages carry exactly
// one tool_result.
func (m *Message) Validate(knownToolCallIDs map[string]bool) error {
	if m.Role == RoleTool {
		count := 0
		for _, p := range m.Parts {
			if p.Kind != PartToolResult {
				return fmt.Errorf("tool message contains non-tool_result part %q", p.Kind)
			}
			count++
		}
		if count != 1 {
			return fmt.Errorf("tool message must carry exactly one tool_result, got %d", count)
		}
	}

	if m.Role == RoleAssistant {
		stage := PartThinking
		for _, p := range m.Parts {
			switch p.Kind {
			case PartThinking:
				if stage != PartThinking {
					return fmt.Errorf("thinking part out of order: must precede text and tool_calls")
				}
			case PartText:
				if stage == PartToolCall {
					return fmt.Errorf("text part out of order: must precede tool_calls")
				}
				stage = PartText
			case PartToolCall:
				stage = PartToolCall
			}
		}
	}

	for _, p := range m.Parts {
		if p.Kind == PartToolResult && knownToolCallIDs != nil {
			if !knownToolCallIDs[p.ToolCallID] {
				return fmt.Errorf("tool_result references unknown tool_call id %q", p.ToolCallID)
			}
		}
	}
	return nil
}
