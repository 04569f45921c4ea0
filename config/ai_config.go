// ai_config.go holds the inference provider configuration.
//
// API keys can also be set via the usual provider environment
// variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, GROQ_API_KEY) and the
// Ollama host via OLLAMA_HOST.
package config

import "os"

// AIConfig holds the inference provider selection and credentials.
type AIConfig struct {
	Provider  string          `koanf:"provider"` // "openai", "anthropic", "groq", "ollama", "placeholder"
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Ollama    OllamaConfig    `koanf:"ollama"`
	Groq      GroqConfig      `koanf:"groq"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host  string `koanf:"host"`
	Model string `koanf:"model"`
}

// GroqConfig holds Groq-specific settings.
type GroqConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// DefaultAIConfig returns sensible defaults. Inference is off until a
// provider is chosen.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider:  "placeholder",
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic: AnthropicConfig{Model: "claude-3-5-haiku-latest"},
		Ollama:    OllamaConfig{Host: "http://localhost:11434", Model: "qwen2.5:7b"},
		Groq:      GroqConfig{Model: "llama-3.1-8b-instant"},
	}
}

// applyProviderEnv lets the provider-native env vars override file config.
func applyProviderEnv(ai *AIConfig) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		ai.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		ai.Anthropic.APIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		ai.Groq.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		ai.Ollama.Host = v
	}
}
