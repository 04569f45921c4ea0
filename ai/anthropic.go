package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/liushuangls/go-anthropic/v2"
)

// Anthropic implements Provider for the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

var _ Provider = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &Anthropic{client: anthropic.NewClient(apiKey), model: model}
}

func (a *Anthropic) Name() string {
	return fmt.Sprintf("Anthropic (%s)", a.model)
}

func (a *Anthropic) Chat(ctx context.Context, messages []Message) (string, error) {
	// Anthropic takes the system prompt as a top-level field.
	var system string
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		text := m.Content
		role := anthropic.RoleUser
		if m.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{Role: role, Content: []anthropic.MessageContent{
			{Type: "text", Text: &text},
		}})
	}
	if len(msgs) == 0 {
		return "", errors.New("anthropic requires at least one user message")
	}

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		System:    system,
		MaxTokens: 1024,
		Messages:  msgs,
	})
	if err != nil {
		return "", errors.Wrap(err, "anthropic request failed")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic returned no text content")
	}
	return sb.String(), nil
}
