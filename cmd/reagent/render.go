package main

import (
	"fmt"
	"io"

	"github.com/reagent-go/reagent/internal/wire"
	"github.com/reagent-go/reagent/pkg/models"
)

// renderEvents drains sub until the wire closes (the terminal sentinel
// event), writing a plain-text line per event to out. There is no styled
// TUI here: reagent's own renderer is meant to be thin, one consumer
// among any number a wire.Wire can carry — a websocket bridge or a test
// harness subscribes the same way.
func renderEvents(out io.Writer, sub *wire.Subscriber) {
	for ev := range sub.Events() {
		if ev.IsTerminal() {
			return
		}
		renderEvent(out, ev)
	}
}

func renderEvent(out io.Writer, ev models.Event) {
	switch ev.Type {
	case models.EventTurnBegin:
		fmt.Fprintln(out, "--- run started ---")
	case models.EventTurnEnd:
		fmt.Fprintln(out, "--- run finished ---")
	case models.EventStepBegin:
		fmt.Fprintf(out, "\n[%v] step %v\n", ev.Data["agent"], ev.Data["step"])
	case models.EventText:
		fmt.Fprintf(out, "%v", ev.Data["text"])
	case models.EventThinking:
		fmt.Fprintf(out, "(thinking) %v", ev.Data["text"])
	case models.EventToolCall:
		fmt.Fprintf(out, "\n  -> %v(%v)\n", ev.Data["name"], ev.Data["arguments"])
	case models.EventToolResult:
		status := "ok"
		if isErr, _ := ev.Data["is_error"].(bool); isErr {
			status = "error"
		}
		fmt.Fprintf(out, "  <- [%s] %v\n", status, ev.Data["content"])
	case models.EventObservation:
		fmt.Fprintf(out, "\n[observation/%v] %v\n", ev.Data["category"], ev.Data["description"])
	case models.EventHypothesis:
		fmt.Fprintf(out, "\n[hypothesis %v] %v (%v, confidence %.2f)\n",
			ev.Data["id"], ev.Data["description"], ev.Data["status"], ev.Data["confidence"])
	case models.EventFinding:
		fmt.Fprintf(out, "\n[finding/%v verified=%v] %v\n", ev.Data["category"], ev.Data["verified"], ev.Data["description"])
	case models.EventTargetInfo:
		fmt.Fprintf(out, "\n[target] format=%v arch=%v bits=%v stripped=%v pie=%v\n",
			ev.Data["format"], ev.Data["arch"], ev.Data["bits"], ev.Data["stripped"], ev.Data["pie"])
	case models.EventSubagentBeg:
		fmt.Fprintf(out, "\n>>> dispatching subagent %v\n", ev.Data["agent"])
	case models.EventSubagentEnd:
		fmt.Fprintf(out, "<<< subagent %v returned\n", ev.Data["agent"])
	case models.EventCompaction:
		fmt.Fprintf(out, "\n[context] %v\n", ev.Data["action"])
	case models.EventDMail:
		fmt.Fprintf(out, "\n[D-Mail -> checkpoint %v] %v\n", ev.Data["checkpoint_id"], ev.Data["message"])
	case models.EventError:
		fmt.Fprintf(out, "\n[error] %v\n", ev.Data["error"])
	case models.EventStatus:
		fmt.Fprintf(out, "\n[status/%v] %v (tokens=%v)\n", ev.Data["agent"], ev.Data["message"], ev.Data["tokens"])
	case models.EventPTYExit:
		fmt.Fprintf(out, "\n[pty %v exited, code=%v] %v\n", ev.Data["title"], ev.Data["exit_code"], ev.Data["last_output"])
	}
}
