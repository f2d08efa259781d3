package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for catalog-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Catalog database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Ingestion pipeline configuration
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Enrichment (LLM) configuration
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// DatabaseConfig holds PostgreSQL catalog database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"catalog"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"catalogdb"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// IngestionConfig holds ingestion pipeline settings.
type IngestionConfig struct {
	// DefaultSchema is the target schema ingested when a request omits one.
	DefaultSchema string `yaml:"default_schema" env:"INGESTION_DEFAULT_SCHEMA" env-default:"public"`
	// SampleLimit caps distinct sample values collected per column.
	SampleLimit int `yaml:"sample_limit" env:"INGESTION_SAMPLE_LIMIT" env-default:"5"`
}

// EnrichmentConfig holds the text-generation backend settings.
// If no API key is configured (and no local endpoint given), enrichment is
// disabled and the pipeline falls back to deterministic annotations.
type EnrichmentConfig struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible endpoint)
	// or "anthropic".
	Provider string `yaml:"provider" env:"ENRICHMENT_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"ENRICHMENT_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"ENRICHMENT_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"ENRICHMENT_API_KEY"` // Secret - not in YAML

	// TimeoutSeconds bounds each enrichment call. The text-generation backend
	// is the only unbounded external dependency in a run, so every call gets
	// its own deadline.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"ENRICHMENT_TIMEOUT_SECONDS" env-default:"30"`
}

// Timeout returns the per-call enrichment deadline as a duration.
func (c *EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IsAvailable returns true if an enrichment backend is configured.
func (c *EnrichmentConfig) IsAvailable() bool {
	return c.APIKey != "" && c.Model != ""
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from environment variables
// and defaults alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Enrichment.Provider != "openai" && c.Enrichment.Provider != "anthropic" {
		return fmt.Errorf("enrichment provider must be openai or anthropic, got %q", c.Enrichment.Provider)
	}
	if c.Enrichment.TimeoutSeconds <= 0 {
		return fmt.Errorf("enrichment timeout must be positive, got %d", c.Enrichment.TimeoutSeconds)
	}
	if c.Ingestion.SampleLimit <= 0 {
		return fmt.Errorf("ingestion sample limit must be positive, got %d", c.Ingestion.SampleLimit)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the catalog database.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
