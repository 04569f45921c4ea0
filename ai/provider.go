// Package ai defines the interface for language-model providers and the
// template inference built on top of them.
//
// Design decisions:
//   - Provider is an interface so we can swap backends (OpenAI, Groq,
//     Ollama, Anthropic) without changing engine code.
//   - All methods accept context for cancellation.
//   - Model output is untrusted: guesses are parsed here and validated
//     again by the template matcher before anything runs.
//   - The placeholder provider reports inference as disabled.
package ai

import (
	"context"
)

// Message represents a chat message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Provider is the interface all backends must implement.
type Provider interface {
	// Chat sends a conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Name returns the provider name for display.
	Name() string
}

// TemplateSignature is what the model sees of a stored template.
type TemplateSignature struct {
	ID      string   `json:"id"`
	Pattern string   `json:"text_pattern"`
	Params  []string `json:"parameter_names"`
}

// TemplateGuess is the model's structured answer. Param values are
// strings or lists of strings once validated.
type TemplateGuess struct {
	TemplateID string         `json:"template_id"`
	Params     map[string]any `json:"params"`
	Confidence float64        `json:"confidence"`
}
