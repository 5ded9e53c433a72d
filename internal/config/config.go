package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Agent     AgentConfig               `mapstructure:"agent"`
	Sessions  SessionsConfig            `mapstructure:"sessions"`
	Store     StoreConfig               `mapstructure:"store"`
	Ingest    IngestConfig              `mapstructure:"ingest"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as Anthropic, OpenAI, or custom gateways.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // anthropic, openai, openrouter, custom
	Model   string        `mapstructure:"model"`    // default model for the provider
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // optional API key
	Timeout time.Duration `mapstructure:"timeout"`  // request timeout
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// AgentConfig describes the generation loop parameters.
type AgentConfig struct {
	MaxRounds   int     `mapstructure:"max_rounds"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// SessionsConfig controls conversation history retention.
type SessionsConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

// StoreConfig selects and configures the course content backend.
type StoreConfig struct {
	Backend     string          `mapstructure:"backend"` // memory or postgres
	DSN         string          `mapstructure:"dsn"`
	SearchLimit int             `mapstructure:"search_limit"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig configures the optional vector embedder used by search.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai or empty to disable
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// IngestConfig controls document loading at startup and via the ingest command.
type IngestConfig struct {
	DocsDir      string `mapstructure:"docs_dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: COURSELENS_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COURSELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("agent.max_rounds", 2)
	v.SetDefault("agent.max_tokens", 800)
	v.SetDefault("agent.temperature", 0.0)

	v.SetDefault("sessions.max_history", 2)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.search_limit", 5)
	v.SetDefault("store.embedding.model", "text-embedding-3-small")

	v.SetDefault("ingest.docs_dir", "docs")
	v.SetDefault("ingest.chunk_size", 800)
	v.SetDefault("ingest.chunk_overlap", 100)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		switch strings.ToLower(strings.TrimSpace(p.Type)) {
		case "anthropic", "openai", "openrouter", "custom":
		case "":
			return fmt.Errorf("provider %q must define type", name)
		default:
			return fmt.Errorf("provider %q has unsupported type %q", name, p.Type)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if c.Agent.MaxRounds <= 0 {
		return errors.New("agent.max_rounds must be > 0")
	}
	if c.Agent.MaxTokens <= 0 {
		return errors.New("agent.max_tokens must be > 0")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return errors.New("agent.temperature must be within [0,2]")
	}

	if c.Sessions.MaxHistory < 0 {
		return errors.New("sessions.max_history must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return errors.New("store.dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory or postgres, got %q", c.Store.Backend)
	}

	if c.Store.SearchLimit <= 0 {
		return errors.New("store.search_limit must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Embedding.Provider)) {
	case "", "openai":
	default:
		return fmt.Errorf("store.embedding.provider must be openai or empty, got %q", c.Store.Embedding.Provider)
	}

	if c.Ingest.ChunkSize <= 0 {
		return errors.New("ingest.chunk_size must be > 0")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return errors.New("ingest.chunk_overlap must be >= 0 and smaller than ingest.chunk_size")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}
