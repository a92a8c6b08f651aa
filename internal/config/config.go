// Package config provides configuration loading and structs for the taxqa service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendChromem  = "chromem"
	BackendPostgres = "postgres"
)

// Retrieval strategies.
const (
	StrategyExhaustive = "exhaustive"
	StrategyIndexed    = "indexed"
)

// Embedding providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the chunk store backend and its location.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	ChromemPath  string `yaml:"chromem_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	Collection   string `yaml:"collection"`
}

// EmbeddingConfig configures the external embedding service.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`

	// APIKey is resolved from APIKeyEnv at load time and never read from the file.
	APIKey string `yaml:"-"`
}

// GenerationConfig configures the external generative model.
type GenerationConfig struct {
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`

	APIKey string `yaml:"-"`
}

// RetrievalConfig holds ranking settings.
type RetrievalConfig struct {
	Strategy   string `yaml:"strategy"`
	TopK       int    `yaml:"top_k"`
	Candidates int    `yaml:"candidates"`
}

// IngestConfig holds corpus and chunking settings.
type IngestConfig struct {
	Directory  string        `yaml:"directory"`
	Extensions []string      `yaml:"extensions"`
	ChunkSize  int           `yaml:"chunk_size"`
	EmbedDelay time.Duration `yaml:"embed_delay"`
}

// Load reads and parses the config file at path, expands paths, applies defaults,
// resolves API keys from the environment, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if abs, err := filepath.Abs(configDir); err == nil {
		configDir = abs
	}
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.ChromemPath = expandPath(cfg.Storage.ChromemPath, configDir)
	cfg.Ingest.Directory = expandPath(cfg.Ingest.Directory, configDir)

	ApplyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv resolves API keys from the environment variables named in cfg.
// TAXQA_STORAGE_BACKEND and TAXQA_RETRIEVAL_STRATEGY override the file when set.
func ApplyEnv(cfg *Config) {
	if cfg.Embedding.APIKeyEnv != "" {
		cfg.Embedding.APIKey = os.Getenv(cfg.Embedding.APIKeyEnv)
	}
	if cfg.Generation.APIKeyEnv != "" {
		cfg.Generation.APIKey = os.Getenv(cfg.Generation.APIKeyEnv)
	}
	if v := os.Getenv("TAXQA_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("TAXQA_RETRIEVAL_STRATEGY"); v != "" {
		cfg.Retrieval.Strategy = v
	}
}

// Validate reports configuration values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendChromem:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("invalid config: storage.postgres_dsn is required for the postgres backend")
		}
		if c.Embedding.Dimensions <= 0 {
			return fmt.Errorf("invalid config: embedding.dimensions is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Embedding.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("invalid config: unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Retrieval.Strategy {
	case StrategyExhaustive:
	case StrategyIndexed:
		if c.Storage.Backend == BackendSQLite {
			return fmt.Errorf("invalid config: the sqlite backend has no native nearest-neighbour search; use strategy %q", StrategyExhaustive)
		}
	default:
		return fmt.Errorf("invalid config: unknown retrieval strategy %q", c.Retrieval.Strategy)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("invalid config: retrieval.top_k must be positive")
	}
	if c.Retrieval.Candidates < c.Retrieval.TopK {
		return fmt.Errorf("invalid config: retrieval.candidates (%d) must be >= top_k (%d)", c.Retrieval.Candidates, c.Retrieval.TopK)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: ingest.chunk_size must be positive")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("invalid config: embedding.dimensions must not be negative")
	}
	return nil
}

// expandPath resolves a configured path. "~/" is the home directory; any other relative path,
// with or without a leading "./", is relative to configDir. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
