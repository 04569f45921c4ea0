package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/parser"
	"github.com/greenscale93/IIsys/query"
	"github.com/greenscale93/IIsys/suggest"
	"github.com/greenscale93/IIsys/template"
)

// Text-search candidates offered when nothing matched.
const (
	searchTopN     = 3
	searchMinScore = 40
)

// NoMatchText starts the response for a question nothing could answer.
const NoMatchText = "Could not match the question to a known table or template."

// templated answers through the template matcher.
func (s *Session) templated(ctx context.Context, question string) *Response {
	e := s.eng
	mt, err := e.matcher.Match(ctx, question)
	if err != nil {
		if !errors.Is(err, template.ErrNoMatch) {
			s.logger.Warn("template matching failed", zap.Error(err))
		}
		return s.noMatch(question)
	}

	if mt.Strategy == template.StrategyInference && mt.Confidence < e.minConfidence {
		s.slot.Offer(&suggest.Suggestion{
			Kind:       suggest.Template,
			TemplateID: mt.Template.ID,
			Params:     mt.Params,
			Question:   question,
			Candidates: []apperrors.Candidate{{Label: mt.Template.ID, Score: int(math.Round(mt.Confidence * 100))}},
		})
		return &Response{
			Text: joinLines(
				fmt.Sprintf("This looks like template %s, but the match is uncertain (%.2f).", mt.Template.ID, mt.Confidence),
				"Reply accept-template-suggestion to run it."),
			Source:   SourceTemplate,
			Strategy: string(mt.Strategy),
		}
	}

	resp := s.runTemplate(ctx, question, mt)
	if resp.Result != nil && mt.Strategy == template.StrategyInference && s.slot.Kind() == suggest.None {
		s.slot.Offer(&suggest.Suggestion{Kind: suggest.SaveAlias, TemplateID: mt.Template.ID, Question: question})
		resp.Text = joinLines(resp.Text, "Reply save-alias to answer this phrasing with "+mt.Template.ID+" from now on.")
	}
	return resp
}

// runTemplate resolves bound parameters, renders and executes mt. A
// binding that cannot be resolved stops before execution.
func (s *Session) runTemplate(ctx context.Context, question string, mt *template.Match) *Response {
	resp := &Response{Source: SourceTemplate, Template: mt.Template.ID, Strategy: string(mt.Strategy)}
	params, notes, pending, stop := s.resolveBindings(question, mt.Template, mt.Params)
	if stop != nil {
		stop.Source = resp.Source
		stop.Template = resp.Template
		stop.Strategy = resp.Strategy
		return stop
	}

	expr, err := mt.Template.Render(params)
	if err != nil {
		resp.Text = apperrors.UserMessage(err)
		return resp
	}
	resp.Expression = expr
	res, err := s.eng.Execute(ctx, expr)
	s.slot.Offer(pending)
	if err != nil {
		resp.Text = joinLines(apperrors.UserMessage(err), notes...)
		return resp
	}
	resp.Result = res
	resp.Text = joinLines(answerText(res), notes...)
	return resp
}

// resolveBindings passes every bound parameter item through the value
// resolution of its entity field, in parameter order. Unbound parameters
// are used as given. A binding to an unloaded entity or to a field with
// no column returns the response to send instead of executing.
func (s *Session) resolveBindings(question string, tpl template.Template, params map[string]query.Value) (map[string]query.Value, []string, *suggest.Suggestion, *Response) {
	e := s.eng
	out := make(map[string]query.Value, len(params))
	var (
		notes   []string
		pending *suggest.Suggestion
	)
	for _, name := range tpl.OrderedParams() {
		v, ok := params[name]
		if !ok {
			continue
		}
		out[name] = v
		b, ok := tpl.Bindings[name]
		if !ok {
			continue
		}
		ds, ok := e.registry.Get(b.Entity)
		if !ok {
			err := &apperrors.UnknownDatasetError{Entity: b.Entity}
			return nil, nil, nil, &Response{Text: err.Error()}
		}
		col, ok := e.mapping.ResolveColumn(ds.Columns, b.Field)
		if !ok {
			return nil, nil, nil, s.unknownColumn(question, ds, parser.Pair{Field: b.Field, Phrase: b.Field})
		}
		items := make([]string, len(v.Items))
		for i, raw := range v.Items {
			rv, err := s.resolveValue(question, ds, b.Field, col, raw)
			if err != nil {
				items[i] = raw
				notes = append(notes, err.Error())
				continue
			}
			items[i] = rv.value
			if rv.note != "" {
				notes = append(notes, rv.note)
			}
			if pending == nil {
				pending = rv.suggestion
			}
		}
		out[name] = query.Value{Items: items, IsList: v.IsList}
	}
	return out, notes, pending, nil
}

// noMatch reports failure and offers the templates closest by text.
func (s *Session) noMatch(question string) *Response {
	resp := &Response{Text: NoMatchText, Source: SourceNone}
	var cands []apperrors.Candidate
	for _, sc := range s.eng.templates.SearchByText(question, searchTopN) {
		if sc.Score >= searchMinScore {
			cands = append(cands, apperrors.Candidate{Label: sc.Template.ID, Score: sc.Score})
		}
	}
	if len(cands) == 0 {
		return resp
	}
	s.slot.Offer(&suggest.Suggestion{Kind: suggest.Template, Candidates: cands, Question: question})
	resp.Text = joinLines(resp.Text,
		"Closest templates: "+candidateLabels(cands),
		"Reply accept-template-suggestion [n] to use one.")
	return resp
}
