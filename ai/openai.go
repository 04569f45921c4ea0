package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sashabaranov/go-openai"
)

// Default endpoints for OpenAI-compatible backends.
const (
	GroqBaseURL = "https://api.groq.com/openai/v1"
)

// OpenAI implements Provider for any OpenAI-compatible chat endpoint:
// OpenAI itself, Groq, and Ollama's /v1 API.
type OpenAI struct {
	client *openai.Client
	label  string
	model  string
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates a provider. An empty baseURL means api.openai.com.
func NewOpenAI(label, apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), label: label, model: model}
}

// NewOllama targets a local Ollama server through its OpenAI-compatible API.
func NewOllama(host, model string) *OpenAI {
	if host == "" {
		host = "http://localhost:11434"
	}
	return NewOpenAI("Ollama", "ollama", model, strings.TrimSuffix(host, "/")+"/v1")
}

func (o *OpenAI) Name() string {
	return fmt.Sprintf("%s (%s)", o.label, o.model)
}

func (o *OpenAI) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: 0,
	})
	if err != nil {
		return "", errors.Wrapf(err, "%s request failed", strings.ToLower(o.label))
	}
	if len(resp.Choices) == 0 {
		return "", errors.Newf("%s returned no choices", strings.ToLower(o.label))
	}
	return resp.Choices[0].Message.Content, nil
}
