package ai

import (
	"github.com/cockroachdb/errors"

	"github.com/greenscale93/IIsys/config"
)

// SupportedProviders lists available provider names for display.
var SupportedProviders = []string{"openai", "anthropic", "groq", "ollama", "placeholder"}

// NewProvider creates a provider from the application config.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.WithHint(errors.New("OpenAI API key not set"),
				"set OPENAI_API_KEY or ai.openai.api_key in config.yaml")
		}
		return NewOpenAI("OpenAI", cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil

	case "groq":
		if cfg.Groq.APIKey == "" {
			return nil, errors.WithHint(errors.New("Groq API key not set"),
				"set GROQ_API_KEY or ai.groq.api_key in config.yaml")
		}
		return NewOpenAI("Groq", cfg.Groq.APIKey, cfg.Groq.Model, GroqBaseURL), nil

	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, errors.WithHint(errors.New("Anthropic API key not set"),
				"set ANTHROPIC_API_KEY or ai.anthropic.api_key in config.yaml")
		}
		return NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model), nil

	case "ollama":
		return NewOllama(cfg.Ollama.Host, cfg.Ollama.Model), nil

	case "placeholder", "":
		return NewPlaceholder(), nil

	default:
		return nil, errors.Newf("unknown AI provider %q, supported: %v", cfg.Provider, SupportedProviders)
	}
}
