package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/synergy/internal/config"
	"github.com/agenthands/synergy/internal/logger"
)

// NewClient builds the generation and embedding clients for a provider.
// The embedder is nil when the provider has no embedding support.
func NewClient(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (LLMClient, EmbedderClient, error) {
	log = logger.OrNop(log)
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL)
		return c, c, nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case "claude":
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		return c, nil, nil

	case "ollama":
		// OpenAI-compatible endpoint, enables usage tracking
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		log.Info("initializing ollama via openai-compatible api", "base_url", baseURL)

		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by ollama, required by the client
		}
		c := NewOpenAIClient(apiKey, cfg.Model, cfg.EmbeddingModel, baseURL)
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
