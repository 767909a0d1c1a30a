package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

// NewClient constructs a provider client for one model binding.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewRouterFromConfig resolves the configured tier aliases into provider
// clients and wires them into a Router. Tiers aliased to the same model share
// one client instance.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Router, error) {
	aliases := map[schemas.ModelTier]string{
		schemas.TierFast:     cfg.Agent.LLM.FastModel,
		schemas.TierPowerful: cfg.Agent.LLM.PowerfulModel,
	}

	byModel := map[string]schemas.LLMClient{}
	clients := map[schemas.ModelTier]schemas.LLMClient{}
	for tier, alias := range aliases {
		modelCfg, ok := cfg.ModelFor(alias)
		if !ok {
			return nil, fmt.Errorf("tier %q references undefined model %q", tier, alias)
		}
		if existing, ok := byModel[alias]; ok {
			clients[tier] = existing
			continue
		}
		client, err := NewClient(ctx, modelCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("building client for model %q: %w", alias, err)
		}
		byModel[alias] = client
		clients[tier] = client
	}

	return NewRouter(clients, logger)
}
