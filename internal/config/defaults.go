package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultChunkSize  = 500
	DefaultTopK       = 5
	DefaultCandidates = 50
	DefaultEmbedDelay = 100 * time.Millisecond
	DefaultGeminiBase = "https://generativelanguage.googleapis.com"
	DefaultAPIKeyEnv  = "GEMINI_API_KEY"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/chunks.db"
	}
	if cfg.Storage.ChromemPath == "" {
		cfg.Storage.ChromemPath = "./data/chromem"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "document_chunks"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderGemini
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.Model = "text-embedding-3-small"
		case ProviderOllama:
			cfg.Embedding.Model = "nomic-embed-text"
		default:
			cfg.Embedding.Model = "text-embedding-004"
		}
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == ProviderGemini {
		cfg.Embedding.BaseURL = DefaultGeminiBase
	}
	if cfg.Embedding.APIKeyEnv == "" && cfg.Embedding.Provider != ProviderOllama {
		if cfg.Embedding.Provider == ProviderOpenAI {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		} else {
			cfg.Embedding.APIKeyEnv = DefaultAPIKeyEnv
		}
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-1.5-flash"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = DefaultGeminiBase
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 2048
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}
	if cfg.Retrieval.Strategy == "" {
		cfg.Retrieval.Strategy = StrategyExhaustive
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.Candidates == 0 {
		cfg.Retrieval.Candidates = DefaultCandidates
		if cfg.Retrieval.Candidates < cfg.Retrieval.TopK {
			cfg.Retrieval.Candidates = cfg.Retrieval.TopK * 10
		}
	}
	if cfg.Ingest.Directory == "" {
		cfg.Ingest.Directory = "./documents"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf"}
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = DefaultChunkSize
	}
	// A negative delay disables pacing; zero means "use the default".
	if cfg.Ingest.EmbedDelay == 0 {
		cfg.Ingest.EmbedDelay = DefaultEmbedDelay
	}
}
