package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Providers accepted by Select.
const (
	ProviderAuto      = "auto"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// SelectConfig holds parameters for backend selection.
type SelectConfig struct {
	Provider        string
	Model           string
	OllamaBaseURL   string
	AnthropicAPIKey string
}

// Select returns the generator named by cfg.Provider. With "auto" an
// Anthropic key wins, then a reachable Ollama server. ErrNoGenerator means
// ranking should use the keyword fallback.
func Select(ctx context.Context, cfg SelectConfig) (Generator, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, ErrNoGenerator
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: anthropic provider needs ANTHROPIC_API_KEY", ErrNoGenerator)
		}
		return NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.Model), nil
	case ProviderOllama:
		return NewOllamaGenerator(cfg.OllamaBaseURL, cfg.Model), nil
	case ProviderAuto, "":
		if cfg.AnthropicAPIKey != "" {
			return NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.Model), nil
		}
		if cfg.OllamaBaseURL != "" {
			g := NewOllamaGenerator(cfg.OllamaBaseURL, cfg.Model)
			if g.IsRunning(ctx) {
				return g, nil
			}
			slog.Debug("ollama not reachable, ranking will use keywords", "url", cfg.OllamaBaseURL)
		}
		return nil, ErrNoGenerator
	default:
		return nil, fmt.Errorf("unknown llm provider %q: must be one of auto, ollama, anthropic, none", cfg.Provider)
	}
}
