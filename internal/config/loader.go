package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file at path, applies process
// environment overrides, fills in defaults, and validates the result. It
// does not read a .env file itself; call LoadDotenv first for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config: %s: expected a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotenv loads key=value pairs from a .env file at path into the
// process environment, for local-dev API keys, the way cmd/reagent's main
// does at startup. A missing file is not an error — .env is optional.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides lets a handful of well-known environment variables
// override file-sourced config, for the common case of injecting API keys
// via the environment rather than committing them to a YAML file.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		setProviderAPIKey(cfg, "anthropic", v)
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		setProviderAPIKey(cfg, "openai", v)
	}
	if v := strings.TrimSpace(os.Getenv("REAGENT_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("REAGENT_CONTEXT_DIR")); v != "" {
		cfg.ContextDir = v
	}
}

func setProviderAPIKey(cfg *Config, provider, key string) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	entry := cfg.LLM.Providers[provider]
	entry.APIKey = key
	cfg.LLM.Providers[provider] = entry
}

// agentFrontmatter is the YAML header of an agent-definition markdown
// file. Full markdown parsing (body rendering, skill/reference includes)
// is out of scope; only the frontmatter block and raw body are decoded.
type agentFrontmatter struct {
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"system_prompt"`
	AllowedTools []string `yaml:"allowed_tools"`
	MaxSteps     int      `yaml:"max_steps"`
	DynamicFocus bool     `yaml:"dynamic_focus"`
}

const frontmatterDelim = "---"

// LoadAgentDefinition parses a markdown+YAML-frontmatter agent definition
// file into an AgentDefinitionConfig, using the document body as the
// system prompt when the frontmatter doesn't set one explicitly.
func LoadAgentDefinition(path string) (AgentDefinitionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentDefinitionConfig{}, fmt.Errorf("config: read agent definition %s: %w", path, err)
	}

	front, body, err := splitFrontmatter(data)
	if err != nil {
		return AgentDefinitionConfig{}, fmt.Errorf("config: %s: %w", path, err)
	}

	var fm agentFrontmatter
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, &fm); err != nil {
			return AgentDefinitionConfig{}, fmt.Errorf("config: %s: parse frontmatter: %w", path, err)
		}
	}

	prompt := fm.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = strings.TrimSpace(body)
	}

	return AgentDefinitionConfig{
		Name:         fm.Name,
		SystemPrompt: prompt,
		AllowedTools: fm.AllowedTools,
		MaxSteps:     fm.MaxSteps,
		DynamicFocus: fm.DynamicFocus,
	}, nil
}

// splitFrontmatter separates a leading "---"-delimited YAML block from the
// rest of a document. A document with no frontmatter delimiter returns the
// whole input as body.
func splitFrontmatter(data []byte) (front, body []byte, err error) {
	trimmed := bytes.TrimLeft(data, "\n")
	if !bytes.HasPrefix(trimmed, []byte(frontmatterDelim)) {
		return nil, data, nil
	}

	rest := trimmed[len(frontmatterDelim):]
	rest = bytes.TrimPrefix(rest, []byte("\n"))

	end := bytes.Index(rest, []byte("\n"+frontmatterDelim))
	if end == -1 {
		return nil, nil, fmt.Errorf("unterminated frontmatter block")
	}

	front = rest[:end]
	body = rest[end+len("\n"+frontmatterDelim):]
	return front, body, nil
}
