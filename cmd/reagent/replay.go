package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/pkg/models"
)

// buildReplayCmd creates the "replay" command, which loads a persisted
// context log and prints its messages in order for postmortem review.
// Unlike the teacher's wire-event trace replay, there is no speed or
// filter control here: the context log is a flat message sequence, not a
// timed event stream, so replay is just a formatted dump.
func buildReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <context-log>",
		Short: "Print a persisted context log for postmortem review",
		Long: `Replay loads the JSON-lines context log an agent run left behind
(under the context_dir run is configured with) and prints every message it contains in
order: system prompts, the user goal, assistant turns, tool calls, and
tool results. Malformed trailing lines are skipped, matching how the
log is restored for a live run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayContext(cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

func replayContext(out io.Writer, path string) error {
	ctx, err := agentcontext.Restore(path)
	if err != nil {
		return fmt.Errorf("restore context log: %w", err)
	}

	messages := ctx.Messages()
	if len(messages) == 0 {
		fmt.Fprintln(out, "(empty context log)")
		return nil
	}

	for i, msg := range messages {
		fmt.Fprintf(out, "--- [%d] %s ---\n", i, msg.Role)
		renderMessage(out, msg)
	}
	return nil
}

func renderMessage(out io.Writer, msg *models.Message) {
	for _, p := range msg.Parts {
		switch p.Kind {
		case models.PartText:
			fmt.Fprintln(out, p.Text)
		case models.PartThinking:
			fmt.Fprintf(out, "(thinking) %s\n", p.Text)
		case models.PartToolCall:
			fmt.Fprintf(out, "-> %s(%s) [%s]\n", p.ToolName, string(p.ToolArguments), p.ToolCallID)
		case models.PartToolResult:
			status := "ok"
			if p.ToolResultIsError {
				status = "error"
			}
			fmt.Fprintf(out, "<- [%s][%s] %s\n", status, p.ToolCallID, p.ToolResultContent)
		}
	}
}
