package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// New creates the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	switch cfg.Provider {
	case config.ProviderGemini, "":
		logger.Debug("Using Gemini embedder", zap.String("model", cfg.Model))
		return NewGeminiEmbedder(GeminiConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedder: missing API key (set %s)", cfg.APIKeyEnv)
		}
		logger.Debug("Using OpenAI-compatible embedder", zap.String("model", cfg.Model), zap.String("base_url", cfg.BaseURL))
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case config.ProviderOllama:
		logger.Debug("Using Ollama embedder", zap.String("model", cfg.Model), zap.String("base_url", cfg.BaseURL))
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case config.ProviderMock:
		logger.Warn("Using mock embedder; answers will not be semantically meaningful")
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: gemini, openai, ollama, mock)", cfg.Provider)
	}
}
