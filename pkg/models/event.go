package models

import "time"

// EventType identifies the kind of a wire Event. The exhaustive list and
// payload shapes are fixed by the external interface contract; new types
// are added, never repurposed.
type EventType string

const (
	EventTurnBegin    EventType = "turn_begin"
	EventTurnEnd      EventType = "turn_end"
	EventStepBegin    EventType = "step_begin"
	EventText         EventType = "text"
	EventThinking     EventType = "thinking"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventObservation  EventType = "observation"
	EventHypothesis   EventType = "hypothesis"
	EventFinding      EventType = "finding"
	EventTargetInfo   EventType = "target_info"
	EventSubagentBeg  EventType = "subagent_begin"
	EventSubagentEnd  EventType = "subagent_end"
	EventCompaction   EventType = "compaction"
	EventDMail        EventType = "dmail"
	EventError        EventType = "error"
	EventStatus       EventType = "status"
	EventPTYExit      EventType = "pty_exit"
	eventTerminal     EventType = "__closed__" // internal sentinel, never sent by producers
)

// Event is a typed wire event: a type discriminator plus an untyped data
// map, matching the external payload contract in the system's interface
// table. Producers should use the New*Event constructors below rather than
// building Data maps by hand, so the field names stay in sync with the
// documented payload shapes.
type Event struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data"`
	Time time.Time      `json:"time"`
}

func newEvent(t EventType, data map[string]any) Event {
	return Event{Type: t, Data: data, Time: time.Now()}
}

// IsTerminal reports whether this is the sentinel event a wire subscriber
// receives exactly once after the wire is closed.
func (e Event) IsTerminal() bool {
	return e.Type == eventTerminal
}

// TerminalEvent constructs the sentinel event delivered to every subscriber
// exactly once when the wire closes.
func TerminalEvent() Event {
	return newEvent(eventTerminal, nil)
}

// NewTurnBeginEvent and NewTurnEndEvent frame one full agent Run call.
func NewTurnBeginEvent() Event { return newEvent(EventTurnBegin, nil) }
func NewTurnEndEvent() Event   { return newEvent(EventTurnEnd, nil) }

// NewStepBeginEvent announces the start of one agent-loop step.
func NewStepBeginEvent(step int, agent string) Event {
	return newEvent(EventStepBegin, map[string]any{"step": step, "agent": agent})
}

// NewTextEvent carries a chunk of assistant text.
func NewTextEvent(text, agent string) Event {
	return newEvent(EventText, map[string]any{"text": text, "agent": agent})
}

// NewThinkingEvent carries a chunk of assistant reasoning text.
func NewThinkingEvent(text, agent string) Event {
	return newEvent(EventThinking, map[string]any{"text": text, "agent": agent})
}

// NewToolCallEvent announces a tool invocation the model requested.
func NewToolCallEvent(id, name, arguments, agent string) Event {
	return newEvent(EventToolCall, map[string]any{
		"id": id, "name": name, "arguments": arguments, "agent": agent,
	})
}

// maxEventContentChars caps the content carried by a TOOL_RESULT event,
// per the external interface contract (content capped at 500 chars).
const maxEventContentChars = 500

// NewToolResultEvent announces a completed tool dispatch. Content is
// capped to 500 chars for the wire payload; the full result still reaches
// the model via the context.
func NewToolResultEvent(id, name, content string, isError bool, agent string) Event {
	if r := []rune(content); len(r) > maxEventContentChars {
		content = string(r[:maxEventContentChars])
	}
	return newEvent(EventToolResult, map[string]any{
		"id": id, "name": name, "content": content, "is_error": isError, "agent": agent,
	})
}

// NewObservationEvent announces a raw fact recorded in the knowledge model.
func NewObservationEvent(description, category string) Event {
	return newEvent(EventObservation, map[string]any{"description": description, "category": category})
}

// NewHypothesisEvent announces a hypothesis's current state.
func NewHypothesisEvent(id, description, status string, confidence float64) Event {
	return newEvent(EventHypothesis, map[string]any{
		"id": id, "description": description, "status": status, "confidence": confidence,
	})
}

// NewFindingEvent announces a verified fact in the knowledge model.
func NewFindingEvent(description, category string, verified bool) Event {
	return newEvent(EventFinding, map[string]any{
		"description": description, "category": category, "verified": verified,
	})
}

// TargetInfo describes the statically-known properties of the binary under
// analysis, as surfaced by the triage subagent.
type TargetInfo struct {
	Format   string `json:"format"`
	Arch     string `json:"arch"`
	Bits     int    `json:"bits"`
	Endian   string `json:"endian"`
	Stripped bool   `json:"stripped"`
	PIE      bool   `json:"pie"`
	NX       bool   `json:"nx"`
	Canary   bool   `json:"canary"`
	RELRO    string `json:"relro"`
}

// NewTargetInfoEvent announces the statically-known properties of the
// binary under analysis.
func NewTargetInfoEvent(info TargetInfo) Event {
	return newEvent(EventTargetInfo, map[string]any{
		"format": info.Format, "arch": info.Arch, "bits": info.Bits,
		"endian": info.Endian, "stripped": info.Stripped, "pie": info.PIE,
		"nx": info.NX, "canary": info.Canary, "relro": info.RELRO,
	})
}

// NewSubagentBeginEvent and NewSubagentEndEvent frame a nested subagent run.
func NewSubagentBeginEvent(agent string) Event {
	return newEvent(EventSubagentBeg, map[string]any{"agent": agent})
}
func NewSubagentEndEvent(agent string) Event {
	return newEvent(EventSubagentEnd, map[string]any{"agent": agent})
}

// CompactionAction describes what a context-management pass actually did.
type CompactionAction string

const (
	CompactionNone            CompactionAction = "none"
	CompactionPruned          CompactionAction = "pruned"
	CompactionCompacted       CompactionAction = "compacted"
	CompactionPrunedCompacted CompactionAction = "pruned+compacted"
)

// NewCompactionEvent announces the outcome of an auto_manage pass.
func NewCompactionEvent(action CompactionAction) Event {
	return newEvent(EventCompaction, map[string]any{"action": string(action)})
}

// NewDMailEvent announces a D-Mail revert: the context is being rolled back
// to checkpointID with an advisory message injected.
func NewDMailEvent(checkpointID int, message string) Event {
	return newEvent(EventDMail, map[string]any{"checkpoint_id": checkpointID, "message": message})
}

// NewErrorEvent announces a fatal or loop-level error.
func NewErrorEvent(err error) Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return newEvent(EventError, map[string]any{"error": msg})
}

// NewStatusEvent carries an ad-hoc status update (token counts, free-form
// progress messages).
func NewStatusEvent(tokens int, agent, message string) Event {
	return newEvent(EventStatus, map[string]any{"tokens": tokens, "agent": agent, "message": message})
}

// NewPTYExitEvent announces a PTY session that exited on its own.
func NewPTYExitEvent(sessionID, title string, exitCode *int, lastOutput string) Event {
	if r := []rune(lastOutput); len(r) > maxEventContentChars {
		lastOutput = string(r[:maxEventContentChars])
	}
	return newEvent(EventPTYExit, map[string]any{
		"session_id": sessionID, "title": title, "exit_code": exitCode, "last_output": lastOutput,
	})
}
