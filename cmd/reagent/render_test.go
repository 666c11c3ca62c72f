package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reagent-go/reagent/internal/wire"
	"github.com/reagent-go/reagent/pkg/models"
)

func TestRenderEventFormatsKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		ev   models.Event
		want string
	}{
		{"text", models.NewTextEvent("hello", "lead"), "hello"},
		{"tool_call", models.NewToolCallEvent("c1", "dispatch_subagent", `{"agent_name":"triage"}`, "lead"), "dispatch_subagent"},
		{"tool_result", models.NewToolResultEvent("c1", "dispatch_subagent", "done", false, "lead"), "done"},
		{"hypothesis", models.NewHypothesisEvent("h1", "packed binary", "open", 0.5), "packed binary"},
		{"dmail", models.NewDMailEvent(3, "try a different approach"), "try a different approach"},
		{"pty_exit", models.NewPTYExitEvent("s1", "shell", nil, "bye"), "bye"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderEvent(&buf, tc.ev)
			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func TestRenderEventsStopsOnTerminalEvent(t *testing.T) {
	w := wire.New(wire.DefaultBackpressureConfig())
	sub := w.Subscribe()
	w.Send(models.NewTextEvent("hi", "lead"))
	w.Close()

	var buf bytes.Buffer
	renderEvents(&buf, sub)
	assert.Contains(t, buf.String(), "hi")
}
