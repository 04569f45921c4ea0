package ai

import (
	"context"

	"github.com/greenscale93/IIsys/apperrors"
)

// Placeholder stands in when no provider is configured. Every call
// reports inference as disabled so the matcher falls through cleanly.
type Placeholder struct{}

var _ Provider = (*Placeholder)(nil)

func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

func (p *Placeholder) Name() string {
	return "placeholder"
}

func (p *Placeholder) Chat(ctx context.Context, messages []Message) (string, error) {
	return "", apperrors.ErrInferenceDisabled
}
