package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/config"
)

func TestParseGuess(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantID   string
		wantConf float64
	}{
		{"bare", `{"template_id": "count_by_manager", "params": {"who": "Сорокин"}, "confidence": 0.9}`, "count_by_manager", 0.9},
		{"fenced", "Вот ответ:\n```json\n{\"template_id\": \"t1\", \"params\": {}, \"confidence\": 0.5}\n```", "t1", 0.5},
		{"plain fence", "```\n{\"template_id\": \"t2\", \"params\": {}}\n```", "t2", 0},
		{"narrative", `I think {"template_id": " t3 ", "params": {"x": "a}b"}, "confidence": 7} fits.`, "t3", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGuess(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, g.TemplateID)
			assert.InDelta(t, tt.wantConf, g.Confidence, 1e-9)
			assert.NotNil(t, g.Params)
		})
	}

	_, err := ParseGuess("no json here")
	assert.Error(t, err)
	_, err = ParseGuess(`{"template_id": 5}`)
	assert.Error(t, err)
}

func TestParseGuessListParams(t *testing.T) {
	g, err := ParseGuess(`{"template_id": "t", "params": {"st": ["Открыт", "Закрыт"], "who": "Иванов"}}`)
	require.NoError(t, err)
	assert.Equal(t, []any{"Открыт", "Закрыт"}, g.Params["st"])
	assert.Equal(t, "Иванов", g.Params["who"])
}

type scripted struct {
	reply string
	got   []Message
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Chat(_ context.Context, messages []Message) (string, error) {
	s.got = messages
	return s.reply, nil
}

func TestInferer(t *testing.T) {
	p := &scripted{reply: `{"template_id": "count_by_manager", "params": {"who": "Сорокин"}, "confidence": 0.8}`}
	inf := NewInferer(p, zaptest.NewLogger(t))
	sigs := []TemplateSignature{{ID: "count_by_manager", Pattern: "Сколько проектов у {who}?", Params: []string{"who"}}}

	g, err := inf.InferTemplate(context.Background(), "Сколько проектов у Сорокина?", sigs)
	require.NoError(t, err)
	assert.Equal(t, "count_by_manager", g.TemplateID)
	require.Len(t, p.got, 2)
	assert.Equal(t, "system", p.got[0].Role)
	assert.True(t, strings.Contains(p.got[1].Content, `"id":"count_by_manager"`))

	params, err := inf.MapParameters(context.Background(), "Сколько проектов у Сорокина?", sigs[0])
	require.NoError(t, err)
	assert.Equal(t, "Сорокин", params["who"])

	p.reply = `{"params": {}}`
	_, err = inf.MapParameters(context.Background(), "x", sigs[0])
	assert.Error(t, err)
}

func TestPlaceholderDisablesInference(t *testing.T) {
	inf := NewInferer(NewPlaceholder(), nil)
	_, err := inf.InferTemplate(context.Background(), "q", nil)
	assert.ErrorIs(t, err, apperrors.ErrInferenceDisabled)
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultAIConfig()

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "placeholder", p.Name())

	cfg.Provider = "ollama"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Ollama (qwen2.5:7b)", p.Name())

	for _, name := range []string{"openai", "groq", "anthropic"} {
		cfg.Provider = name
		_, err = NewProvider(cfg)
		assert.Error(t, err, name)
	}

	cfg.Provider = "groq"
	cfg.Groq.APIKey = "gsk"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Groq (llama-3.1-8b-instant)", p.Name())

	cfg.Provider = "gemini"
	_, err = NewProvider(cfg)
	assert.Error(t, err)
}
