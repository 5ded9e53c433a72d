package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
version: "0.1.0"
providers:
  anthropic:
    type: anthropic
    api_key: dummy
    timeout: 30s
models:
  main:
    provider: anthropic
    model: claude-sonnet-4-20250514
    temperature: 0
    max_tokens: 800
    default: true
agent:
  max_rounds: 3
store:
  backend: memory
`

	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.Models["main"].Provider)
	require.Equal(t, 3, cfg.Agent.MaxRounds)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, 800, cfg.Agent.MaxTokens)
	require.Equal(t, 2, cfg.Sessions.MaxHistory)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
providers:
  openai:
    type: openai
    base_url: https://api.openai.com
    api_key: dummy
models:
  main:
    provider: openai
    model: gpt-4o
    default: true
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	t.Setenv("COURSELENS_AGENT_MAX_ROUNDS", "4")
	t.Setenv("COURSELENS_SESSIONS_MAX_HISTORY", "5")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Agent.MaxRounds)
	require.Equal(t, 5, cfg.Sessions.MaxHistory)
}

func TestValidateFailsOnUnknownProvider(t *testing.T) {
	cfg := Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {Type: "anthropic"},
		},
		Models: map[string]ModelConfig{
			"broken": {Provider: "missing", Default: true},
		},
		Agent:  AgentConfig{MaxRounds: 2, MaxTokens: 800},
		Store:  StoreConfig{Backend: "memory", SearchLimit: 5},
		Ingest: IngestConfig{ChunkSize: 800},
	}

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsPostgresWithoutDSN(t *testing.T) {
	cfg := Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {Type: "anthropic"},
		},
		Models: map[string]ModelConfig{
			"main": {Provider: "anthropic", Default: true},
		},
		Agent:  AgentConfig{MaxRounds: 2, MaxTokens: 800},
		Store:  StoreConfig{Backend: "postgres", SearchLimit: 5},
		Ingest: IngestConfig{ChunkSize: 800},
	}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "store.dsn")
}

func TestValidateRejectsUnsupportedProviderType(t *testing.T) {
	cfg := Config{
		Providers: map[string]ProviderConfig{
			"weird": {Type: "carrier-pigeon"},
		},
		Models: map[string]ModelConfig{
			"main": {Provider: "weird", Default: true},
		},
		Agent:  AgentConfig{MaxRounds: 2, MaxTokens: 800},
		Store:  StoreConfig{Backend: "memory", SearchLimit: 5},
		Ingest: IngestConfig{ChunkSize: 800},
	}

	err := cfg.Validate()
	require.Error(t, err)
}
