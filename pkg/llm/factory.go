package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewFromConfig builds the configured provider client, wrapped with
// client-side rate limiting when RequestsPerMinute is set.
func NewFromConfig(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	var (
		client LLMClient
		err    error
	)

	switch cfg.Provider {
	case "openai", "":
		client, err = NewOpenAIClient(cfg, logger)
	case "anthropic":
		client, err = NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	if cfg.RequestsPerMinute > 0 {
		return NewRateLimitedClient(client, cfg.RequestsPerMinute), nil
	}
	return client, nil
}
