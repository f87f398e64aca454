package llm

import (
	"context"
	"fmt"

	"github.com/seenimoa/investa/internal/config"
)

// New builds the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	pc := ProviderConfig{
		APIKey:      cfg.ProviderKey(),
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout(),
	}
	if pc.Model == "" {
		pc.Model = DefaultProviderConfig().Model
	}

	switch cfg.Provider {
	case ProviderGroq, ProviderOpenAI:
		return NewOpenAIProvider(cfg.Provider, pc)
	case ProviderOllama:
		if pc.BaseURL == "" {
			pc.BaseURL = cfg.OllamaURL
		}
		return NewOpenAIProvider(ProviderOllama, pc)
	case ProviderAnthropic:
		return NewAnthropicProvider(pc)
	case ProviderGemini:
		return NewGeminiProvider(ctx, pc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
