package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/query"
	"github.com/greenscale93/IIsys/suggest"
)

// Source tells which path produced a response.
type Source string

const (
	SourceNone       Source = "none"
	SourceStructured Source = "structured"
	SourceTemplate   Source = "template"
	SourceCommand    Source = "command"
)

// Response is what a question or command yields. Suggestion is the
// session's pending suggestion after the call, nil when none.
type Response struct {
	Text       string
	Suggestion *suggest.Suggestion
	Source     Source
	// Expression is the executed expression, when one ran.
	Expression string
	Result     *query.Result
	// Template and Strategy are set when a template answered.
	Template string
	Strategy string
}

// Session is one conversation. Calls are serialized so only one question
// at a time owns the suggestion slot.
type Session struct {
	ID string

	eng    *Engine
	logger *zap.Logger

	mu   sync.Mutex
	slot suggest.Slot
	last string
}

// NewSession starts a conversation with an empty suggestion slot.
func (e *Engine) NewSession() *Session {
	id := uuid.NewString()
	return &Session{ID: id, eng: e, logger: e.logger.With(zap.String("session", id))}
}

// Pending returns the current suggestion, or nil.
func (s *Session) Pending() *suggest.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot.Current()
}

// State is the suggestion slot state name.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot.State()
}

// LastQuestion is the last question asked in this session.
func (s *Session) LastQuestion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Ask handles either a command of the suggestion protocol or a new
// question. A new question clears any pending suggestion first. The
// returned error is non-nil only when persisting an accepted alias failed.
func (s *Session) Ask(ctx context.Context, text string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return s.reply(&Response{Text: "Ask a question about the loaded tables.", Source: SourceNone}), nil
	}
	if cmd, ok := parseCommand(text); ok {
		return s.command(ctx, cmd)
	}

	s.slot.Clear()
	s.last = text
	s.logger.Info("question", zap.String("text", text))
	return s.reply(s.answer(ctx, text)), nil
}

// Accept accepts the pending suggestion of kind with the 1-based index.
// It is the programmatic form of the accept commands.
func (s *Session) Accept(ctx context.Context, kind suggest.Kind, index int) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accept(ctx, kind, index)
}

// Reject drops the pending suggestion.
func (s *Session) Reject() *Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reject()
}

// reply stamps the slot's current suggestion onto r.
func (s *Session) reply(r *Response) *Response {
	r.Suggestion = s.slot.Current()
	return r
}

// answer runs the structured path and falls back to templates.
func (s *Session) answer(ctx context.Context, question string) *Response {
	var dsErr error
	if p, ok := s.eng.parser.Parse(question); ok {
		resp, err := s.structured(ctx, question, p)
		if err == nil {
			return resp
		}
		var unknown *apperrors.UnknownDatasetError
		if !errors.As(err, &unknown) {
			return &Response{Text: apperrors.UserMessage(err), Source: SourceStructured}
		}
		dsErr = err
	}
	resp := s.templated(ctx, question)
	if resp.Template == "" && dsErr != nil {
		resp.Text = apperrors.UserMessage(dsErr) + "\n" + resp.Text
	}
	return resp
}
