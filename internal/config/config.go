// Package config loads the YAML configuration that wires together an
// orchestrator run: which LLM providers are available, the PTY and wire
// tuning knobs, and the roster of subagents dispatch_subagent can reach.
// It mirrors the teacher's internal/config/loader.go shape (Load, env
// overrides, defaulting, validation) without the multi-channel gateway
// surface that package also covers — this domain has no channels.
package config

import (
	"fmt"
)

// Config is the root configuration for one reagent run.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	PTY           PTYConfig           `yaml:"pty"`
	Wire          WireConfig          `yaml:"wire"`
	ToolRegistry  ToolRegistryConfig  `yaml:"tool_registry"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	ContextDir    string              `yaml:"context_dir"`
}

// LLMConfig selects and configures the LLM providers available to a run.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig configures one named provider (anthropic, openai, ...).
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// LoggingConfig controls the slog handler constructed at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig groups metrics/tracing configuration.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// PTYConfig holds PTY settings. They are defaulted and validated here, but
// internal/pty.Manager does not read them: its session cap is the
// pty.MaxSessions constant.
type PTYConfig struct {
	MaxSessions int `yaml:"max_sessions"`
	DefaultRows int `yaml:"default_rows"`
	DefaultCols int `yaml:"default_cols"`
}

// WireConfig tunes internal/wire.Wire's per-subscriber lane sizes.
type WireConfig struct {
	HighPriBuffer int `yaml:"high_pri_buffer"`
	LowPriBuffer  int `yaml:"low_pri_buffer"`
}

// ToolRegistryConfig tunes internal/toolregistry.Registry.
type ToolRegistryConfig struct {
	OverflowDir    string `yaml:"overflow_dir"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// OrchestratorConfig lists the subagent roster a run's top-level agent can
// dispatch to via dispatch_subagent.
type OrchestratorConfig struct {
	Agents []AgentDefinitionConfig `yaml:"agents"`
}

// AgentDefinitionConfig is the YAML shape of one internal/orchestrator.AgentDefinition.
type AgentDefinitionConfig struct {
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"system_prompt"`
	AllowedTools []string `yaml:"allowed_tools"`
	MaxSteps     int      `yaml:"max_steps"`
	DynamicFocus bool     `yaml:"dynamic_focus"`
}

// ConfigValidationError reports every validation issue found at once,
// mirroring the teacher's accumulate-then-report style.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	msg := "config validation failed:"
	for _, issue := range e.Issues {
		msg += "\n- " + issue
	}
	return msg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.Tracing.SamplingRate == 0 {
		cfg.Observability.Tracing.SamplingRate = 1.0
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = "reagent"
	}
	if cfg.PTY.MaxSessions == 0 {
		cfg.PTY.MaxSessions = 10
	}
	if cfg.PTY.DefaultRows == 0 {
		cfg.PTY.DefaultRows = 40
	}
	if cfg.PTY.DefaultCols == 0 {
		cfg.PTY.DefaultCols = 120
	}
	if cfg.Wire.HighPriBuffer == 0 {
		cfg.Wire.HighPriBuffer = 64
	}
	if cfg.Wire.LowPriBuffer == 0 {
		cfg.Wire.LowPriBuffer = 512
	}
	if cfg.ContextDir == "" {
		cfg.ContextDir = ".reagent"
	}
	for i := range cfg.Orchestrator.Agents {
		if cfg.Orchestrator.Agents[i].MaxSteps == 0 {
			cfg.Orchestrator.Agents[i].MaxSteps = 10
		}
	}
}

func validate(cfg *Config) error {
	var issues []string

	if cfg.LLM.DefaultProvider != "" {
		if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
		}
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q must be one of debug/info/warn/error", cfg.Logging.Level))
	}
	if cfg.Observability.Tracing.SamplingRate < 0 || cfg.Observability.Tracing.SamplingRate > 1 {
		issues = append(issues, "observability.tracing.sampling_rate must be between 0 and 1")
	}
	if cfg.PTY.MaxSessions <= 0 {
		issues = append(issues, "pty.max_sessions must be > 0")
	}

	seen := map[string]bool{}
	for i, agent := range cfg.Orchestrator.Agents {
		if agent.Name == "" {
			issues = append(issues, fmt.Sprintf("orchestrator.agents[%d].name is required", i))
			continue
		}
		if seen[agent.Name] {
			issues = append(issues, fmt.Sprintf("orchestrator.agents[%d].name %q is duplicated", i, agent.Name))
		}
		seen[agent.Name] = true
		if agent.MaxSteps < 0 {
			issues = append(issues, fmt.Sprintf("orchestrator.agents[%d].max_steps must be >= 0", i))
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
