package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.PTY.MaxSessions)
	assert.Equal(t, 64, cfg.Wire.HighPriBuffer)
	assert.Equal(t, 512, cfg.Wire.LowPriBuffer)
	assert.Equal(t, ".reagent", cfg.ContextDir)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
unknown_top_level_key: true
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_provider")
}

func TestLoadValidatesDuplicateAgentNames(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
orchestrator:
  agents:
    - name: triage
      system_prompt: triage the binary
    - name: triage
      system_prompt: also triage
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
}

func TestLoadAppliesAgentMaxStepsDefault(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
orchestrator:
  agents:
    - name: triage
      system_prompt: triage the binary
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Orchestrator.Agents, 1)
	assert.Equal(t, 10, cfg.Orchestrator.Agents[0].MaxSteps)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_REAGENT_MODEL", "claude-test")
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      default_model: ${TEST_REAGENT_MODEL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-test", cfg.LLM.Providers["anthropic"].DefaultModel)
}

func TestApplyEnvOverridesSetsAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-env", cfg.LLM.Providers["anthropic"].APIKey)
}

func TestLoadAgentDefinitionParsesFrontmatterAndBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.md")
	contents := "---\nname: triage\nallowed_tools: [\"read_file\", \"disassemble\"]\nmax_steps: 5\n---\nYou triage unknown binaries before deeper analysis.\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	def, err := LoadAgentDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "triage", def.Name)
	assert.Equal(t, []string{"read_file", "disassemble"}, def.AllowedTools)
	assert.Equal(t, 5, def.MaxSteps)
	assert.Contains(t, def.SystemPrompt, "triage unknown binaries")
}

func TestLoadAgentDefinitionWithoutFrontmatterUsesWholeBodyAsPrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.md")
	require.NoError(t, os.WriteFile(path, []byte("Just a prompt, no frontmatter.\n"), 0o644))

	def, err := LoadAgentDefinition(path)
	require.NoError(t, err)
	assert.Empty(t, def.Name)
	assert.Contains(t, def.SystemPrompt, "Just a prompt")
}
