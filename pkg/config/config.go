package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for scopeline-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// AI endpoint configuration
	AI AIConfig `yaml:"ai"`

	// Signal pipeline tunables
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"scopeline"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"scopeline_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// AIConfig holds the LLM and embedding endpoint configuration.
// Provider selects the chat backend: "openai" for any OpenAI-compatible
// endpoint (including local vLLM), "anthropic" for the native Anthropic API.
// Embeddings always use the OpenAI-compatible endpoint regardless of provider.
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`

	LLMBaseURL string `yaml:"llm_base_url" env:"AI_LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	LLMModel   string `yaml:"llm_model" env:"AI_LLM_MODEL" env-default:"gpt-4o"`
	LLMAPIKey  string `yaml:"-" env:"AI_LLM_API_KEY"` // Secret - not in YAML

	EmbeddingBaseURL string `yaml:"embedding_base_url" env:"AI_EMBEDDING_BASE_URL" env-default:""`
	EmbeddingModel   string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	EmbeddingAPIKey  string `yaml:"-" env:"AI_EMBEDDING_API_KEY"` // Secret - not in YAML

	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML

	// RequestTimeoutSeconds bounds each individual LLM call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"AI_REQUEST_TIMEOUT_SECONDS" env-default:"120"`
}

// EffectiveEmbeddingBaseURL falls back to the chat endpoint when no dedicated
// embedding endpoint is configured.
func (c *AIConfig) EffectiveEmbeddingBaseURL() string {
	if c.EmbeddingBaseURL != "" {
		return c.EmbeddingBaseURL
	}
	return c.LLMBaseURL
}

// EffectiveEmbeddingAPIKey falls back to the chat key when no dedicated
// embedding key is configured.
func (c *AIConfig) EffectiveEmbeddingAPIKey() string {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey
	}
	return c.LLMAPIKey
}

// PipelineConfig holds signal-pipeline tunables.
type PipelineConfig struct {
	// ChunkSizeChars is the target size of each extraction chunk.
	ChunkSizeChars int `yaml:"chunk_size_chars" env:"PIPELINE_CHUNK_SIZE_CHARS" env-default:"6000"`

	// MaxConcurrentExtractions bounds parallel per-chunk LLM calls.
	MaxConcurrentExtractions int `yaml:"max_concurrent_extractions" env:"PIPELINE_MAX_CONCURRENT_EXTRACTIONS" env-default:"4"`

	// MaxEvidencePerPatch caps evidence lists after cross-chunk merging.
	MaxEvidencePerPatch int `yaml:"max_evidence_per_patch" env:"PIPELINE_MAX_EVIDENCE_PER_PATCH" env-default:"12"`

	// MentionBumpThreshold is the mention count at which the scorer bumps
	// confidence one tier.
	MentionBumpThreshold int `yaml:"mention_bump_threshold" env:"PIPELINE_MENTION_BUMP_THRESHOLD" env-default:"3"`

	// AutoApplyTiersStr is a comma-separated list of confidence tiers the
	// applicator may apply without human review.
	AutoApplyTiersStr string `yaml:"auto_apply_tiers" env:"PIPELINE_AUTO_APPLY_TIERS" env-default:"medium,high,very_high"`

	// AutoApplyTiers is parsed from AutoApplyTiersStr at load time.
	AutoApplyTiers []string `yaml:"-"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Pipeline.AutoApplyTiers = splitCSV(c.Pipeline.AutoApplyTiersStr)
	if len(c.Pipeline.AutoApplyTiers) == 0 {
		return fmt.Errorf("pipeline.auto_apply_tiers must list at least one tier")
	}
	return nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
