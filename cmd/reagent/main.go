// Package main provides the CLI entry point for reagent, an autonomous
// multi-agent orchestrator for binary reverse engineering.
//
// reagent drives an LLM-backed agent loop against a reverse-engineering
// goal, dispatching specialist subagents as needed and recording every
// observation, hypothesis, and finding into a shared knowledge model.
// Interactive tools talk to managed PTY sessions; all activity is
// broadcast on an in-process event wire any number of consumers (this
// CLI's own renderer, a future websocket bridge) can subscribe to.
//
// # Basic Usage
//
// Run an analysis goal against a target binary:
//
//	reagent run "identify the license-check routine in ./target" --config reagent.yaml
//
// Replay a persisted context log for postmortem review:
//
//	reagent replay .reagent/context.jsonl
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - REAGENT_LOG_LEVEL: overrides config logging.level
//   - REAGENT_CONTEXT_DIR: overrides config context_dir
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached,
// separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "reagent",
		Short:   "reagent - autonomous multi-agent orchestrator for binary reverse engineering",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `reagent drives an LLM agent loop over a reverse-engineering goal,
delegating to specialist subagents and recording findings into a shared
knowledge model as it goes. Interactive work happens in managed PTY
sessions; all activity streams over an in-process event wire.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildRunCmd(), buildReplayCmd())
	return rootCmd
}
