package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/internal/agentloop"
	"github.com/reagent-go/reagent/internal/config"
	"github.com/reagent-go/reagent/internal/knowledge"
	"github.com/reagent-go/reagent/internal/llmagent"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/internal/observability"
	"github.com/reagent-go/reagent/internal/orchestrator"
	"github.com/reagent-go/reagent/internal/pty"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/internal/wire"
	"github.com/reagent-go/reagent/pkg/models"
)

// buildRunCmd creates the "run" command that drives one agent loop
// against a reverse-engineering goal, mirroring the teacher's "serve":
// load configuration, wire collaborators, then hand off to the run loop
// until completion or SIGINT/SIGTERM.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		dotenvPath string
		agentName  string
		wsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run an analysis goal through the agent loop",
		Long: `Run starts the top-level agent loop against a goal, emitting every
observation, hypothesis, tool call, and subagent dispatch onto the event
wire, and rendering that stream to stdout as it happens.

Graceful shutdown is handled on SIGINT/SIGTERM: in-flight tool dispatches
and PTY sessions are given a chance to finish, and the context log is
left in a consistent, replayable state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoal(cmd, args[0], configPath, dotenvPath, agentName, wsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&dotenvPath, "dotenv", ".env", "Path to a .env file for local API keys (optional)")
	cmd.Flags().StringVar(&agentName, "agent", "main", "Name under which the top-level agent run is recorded")
	cmd.Flags().StringVar(&wsAddr, "ws-addr", "", "Optional address (e.g. :8787) to serve wire events over a websocket for a browser UI")
	return cmd
}

func runGoal(cmd *cobra.Command, goal, configPath, dotenvPath, agentName, wsAddr string) error {
	if err := config.LoadDotenv(dotenvPath); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()
	tracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:  "reagent",
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
	})
	defer tracer.Shutdown(context.Background())

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	w := wire.New(wire.BackpressureConfig{
		HighPriBuffer: cfg.Wire.HighPriBuffer,
		LowPriBuffer:  cfg.Wire.LowPriBuffer,
	})
	defer w.Close()

	if err := os.MkdirAll(cfg.ContextDir, 0o755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	registry := toolregistry.New()
	registry.OverflowDir = cfg.ToolRegistry.OverflowDir
	registry.MaxConcurrency = cfg.ToolRegistry.MaxConcurrency

	model := knowledge.New()
	orch := orchestrator.New(provider, registry, w, model, cfg.ContextDir)
	for _, def := range cfg.Orchestrator.Agents {
		orch.RegisterAgent(orchestrator.AgentDefinition{
			Name:         def.Name,
			SystemPrompt: def.SystemPrompt,
			AllowedTools: def.AllowedTools,
			MaxSteps:     def.MaxSteps,
			DynamicFocus: def.DynamicFocus,
		})
	}
	for _, t := range orch.Tools() {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register orchestrator tool %s: %w", t.Name(), err)
		}
	}

	ptyManager := pty.NewManager(logger, func(s *pty.Session) {
		metrics.PTYSessionsActive.Dec()
		var exitCode *int
		if code, ok := s.ExitCode(); ok {
			exitCode = &code
		}
		w.Send(models.NewPTYExitEvent(s.ID, s.Title, exitCode, strings.Join(s.ReadTail(50), "\n")))
	})
	defer ptyManager.Cleanup()

	contextPath := filepath.Join(cfg.ContextDir, sanitizeRunName(agentName)+".jsonl")
	ctxStore, err := openOrCreateContext(contextPath)
	if err != nil {
		return fmt.Errorf("open context store: %w", err)
	}
	if err := ctxStore.AppendSystem(topLevelSystemPrompt(agentName)); err != nil {
		return fmt.Errorf("seed system message: %w", err)
	}
	if err := ctxStore.Append(models.NewMessage(models.RoleUser, models.TextPart(goal))); err != nil {
		return fmt.Errorf("append goal: %w", err)
	}

	summarizer := llmagent.NewSummarizer(provider)
	compact := func(ctx context.Context) (models.CompactionAction, error) {
		return ctxStore.AutoManage(ctx, summarizer, provider.ContextWindow(provider.DefaultModel())-agentloop.ReserveTokens)
	}

	observers := orchestrator.ObserversForWire(w, agentName)
	baseOnStep := observers.OnStep
	observers.OnStep = func(stepNo int, usage llmagent.Usage) {
		metrics.RecordAgentStep(agentName, "step")
		if baseOnStep != nil {
			baseOnStep(stepNo, usage)
		}
	}

	loop := agentloop.New(provider, registry, ctxStore, compact, observers)

	sub := w.Subscribe()
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderEvents(cmd.OutOrStdout(), sub)
	}()

	if wsAddr != "" {
		stopWS := serveWireOverWebsocket(wsAddr, w, logger)
		defer stopWS()
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-runCtx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	winchCh := make(chan os.Signal, 1)
	signal.Notify(winchCh, syscall.SIGWINCH)
	defer signal.Stop(winchCh)
	go func() {
		for {
			select {
			case <-winchCh:
				ptyManager.ResizeAll(int(os.Stdin.Fd()))
			case <-runCtx.Done():
				return
			}
		}
	}()

	stopKeypressWatch := watchInterruptKeypress(runCtx, cancel)
	defer stopKeypressWatch()

	traceCtx, span := tracer.Start(runCtx, "agent_run")
	w.Send(models.NewTurnBeginEvent())
	outcome, runErr := loop.Run(traceCtx, agentloop.Agent{
		Name:         agentName,
		SystemPrompt: topLevelSystemPrompt(agentName),
		AllowedTools: allToolNames(registry),
	})
	w.Send(models.NewTurnEndEvent())
	tracer.RecordError(span, runErr)
	span.End()

	metrics.RecordAgentStep(agentName, string(outcome))
	w.Close()
	<-renderDone

	if runErr != nil {
		return fmt.Errorf("agent run: %w", runErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nrun finished: %s\n", outcome)
	if outcome == agentloop.Error {
		os.Exit(1)
	}
	return nil
}

func buildProvider(cfg *config.Config) (llmprovider.Provider, error) {
	name := cfg.LLM.DefaultProvider
	pcfg, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("no provider configuration for default provider %q", name)
	}
	switch name {
	case "anthropic":
		return llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{
			APIKey:       pcfg.APIKey,
			BaseURL:      pcfg.BaseURL,
			DefaultModel: pcfg.DefaultModel,
		})
	case "openai":
		return llmprovider.NewOpenAIProvider(pcfg.APIKey, pcfg.DefaultModel)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", name)
	}
}

func openOrCreateContext(path string) (*agentcontext.Context, error) {
	if _, err := os.Stat(path); err == nil {
		return agentcontext.Restore(path)
	}
	return agentcontext.New(path)
}

func topLevelSystemPrompt(agentName string) string {
	return fmt.Sprintf("You are %s, the lead agent for a binary reverse-engineering session. Delegate specialist work via dispatch_subagent and record every observation, hypothesis, and finding via update_model.", agentName)
}

func sanitizeRunName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// serveWireOverWebsocket starts an HTTP server at addr exposing w's events
// to any number of browser UIs over a websocket, for the rare run where a
// consumer other than this CLI's own renderer wants the same stream. It
// returns a stop function that shuts the server down.
func serveWireOverWebsocket(addr string, w *wire.Wire, logger *slog.Logger) func() {
	bridge := wire.NewWSBridge(w, logger)
	srv := &http.Server{Addr: addr, Handler: bridge}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("wire websocket server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// watchInterruptKeypress puts stdin into raw mode and cancels ctx on the
// first keystroke read from it, letting an interactive user interrupt a run
// without waiting for Ctrl-C's signal delivery. It is a no-op when stdin
// isn't an interactive terminal. The returned stop function restores stdin's
// original mode and must be called before the command returns.
func watchInterruptKeypress(ctx context.Context, cancel context.CancelFunc) func() {
	fd := int(os.Stdin.Fd())
	if !pty.IsTerminal(fd) {
		return func() {}
	}
	state, err := pty.EnterRawMode(fd)
	if err != nil {
		return func() {}
	}

	go func() {
		buf := make([]byte, 1)
		for ctx.Err() == nil {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				cancel()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = state.Restore()
		})
	}
}

// allToolNames lists every tool currently registered, so the top-level
// agent (unlike a restricted subagent) can reach all of them.
func allToolNames(registry *toolregistry.Registry) []string {
	specs := registry.Specs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
