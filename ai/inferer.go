package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Inferer asks a Provider to route questions to templates.
type Inferer struct {
	provider Provider
	logger   *zap.Logger
}

// NewInferer wraps p.
func NewInferer(p Provider, logger *zap.Logger) *Inferer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inferer{provider: p, logger: logger.Named("ai")}
}

// Name reports the provider in use.
func (i *Inferer) Name() string { return i.provider.Name() }

// InferTemplate picks one of sigs for question and extracts its params.
func (i *Inferer) InferTemplate(ctx context.Context, question string, sigs []TemplateSignature) (*TemplateGuess, error) {
	catalog, err := json.Marshal(sigs)
	if err != nil {
		return nil, err
	}
	messages := []Message{
		{Role: "system", Content: systemPromptInfer},
		{Role: "user", Content: fmt.Sprintf("Templates:\n%s\n\nQuestion: %s", catalog, question)},
	}

	logRequest(i.logger, "InferTemplate", i.provider.Name(),
		zap.String("question", question), zap.Int("templates", len(sigs)))
	start := time.Now()
	resp, err := i.provider.Chat(ctx, messages)
	logResponse(i.logger, "InferTemplate", resp, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return ParseGuess(resp)
}

// MapParameters extracts the params of an already chosen template.
func (i *Inferer) MapParameters(ctx context.Context, question string, sig TemplateSignature) (map[string]any, error) {
	tpl, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	messages := []Message{
		{Role: "system", Content: systemPromptMap},
		{Role: "user", Content: fmt.Sprintf("Template:\n%s\n\nQuestion: %s", tpl, question)},
	}

	logRequest(i.logger, "MapParameters", i.provider.Name(),
		zap.String("question", question), zap.String("template", sig.ID))
	start := time.Now()
	resp, err := i.provider.Chat(ctx, messages)
	logResponse(i.logger, "MapParameters", resp, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	g, err := ParseGuess(resp)
	if err != nil {
		return nil, err
	}
	if len(g.Params) == 0 && len(sig.Params) > 0 {
		return nil, errors.Newf("model returned no parameters for %q", sig.ID)
	}
	return g.Params, nil
}
