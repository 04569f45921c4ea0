package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/dataset"
	"github.com/greenscale93/IIsys/fuzzy"
	"github.com/greenscale93/IIsys/parser"
	"github.com/greenscale93/IIsys/query"
	"github.com/greenscale93/IIsys/suggest"
)

// structured answers a parsed question with a generated filter expression.
// An unloaded entity is returned as an error so the caller can try the
// templates instead.
func (s *Session) structured(ctx context.Context, question string, p *parser.Parsed) (*Response, error) {
	e := s.eng
	ds, ok := e.registry.Get(p.Entity)
	if !ok {
		return nil, errors.WithStack(&apperrors.UnknownDatasetError{Entity: p.Entity})
	}

	var (
		conds   []string
		notes   []string
		pending *suggest.Suggestion
	)
	for _, pair := range p.Pairs {
		col, ok := e.mapping.ResolveColumn(ds.Columns, pair.Field)
		if !ok {
			return s.unknownColumn(question, ds, pair), nil
		}
		rv, err := s.resolveValue(question, ds, pair.Field, col, pair.Value)
		if err != nil {
			return &Response{Text: apperrors.UserMessage(err), Source: SourceStructured}, nil
		}
		if rv.note != "" {
			notes = append(notes, rv.note)
		}
		if pending == nil {
			pending = rv.suggestion
		}
		conds = append(conds, fmt.Sprintf("eq(%s, %s)", quoted(col), quoted(rv.value)))
	}

	var sb strings.Builder
	sb.WriteString(query.Marker + "\n")
	fmt.Fprintf(&sb, "rows = where(%s, %s)\n", datasetIdent(ds.Name), strings.Join(conds, ", "))
	if p.Mode == parser.ModeList {
		name := nameColumn(ds)
		if name == "" {
			return &Response{Text: fmt.Sprintf("%s has no column to list", ds.Name), Source: SourceStructured}, nil
		}
		fmt.Fprintf(&sb, "result = column(rows, %s)\n", quoted(name))
	} else {
		sb.WriteString("result = count(rows)\n")
	}
	expr := sb.String()

	resp := &Response{Source: SourceStructured, Expression: expr}
	res, err := e.Execute(ctx, expr)
	s.slot.Offer(pending)
	if err != nil {
		resp.Text = joinLines(apperrors.UserMessage(err), notes...)
		return resp, nil
	}
	resp.Result = res
	resp.Text = joinLines(answerText(res), notes...)
	return resp, nil
}

// unknownColumn reports a field with no column and offers the closest ones.
func (s *Session) unknownColumn(question string, ds *dataset.Dataset, pair parser.Pair) *Response {
	cands := fuzzy.SuggestColumns(ds.Columns, pair.Phrase, s.eng.columnTopN)
	err := &apperrors.UnknownColumnError{Entity: ds.Name, Field: pair.Field, Suggestions: cands}
	resp := &Response{Text: err.Error(), Source: SourceStructured}
	if len(cands) == 0 {
		return resp
	}
	s.slot.Offer(&suggest.Suggestion{
		Kind:       suggest.Column,
		Entity:     ds.Name,
		Field:      pair.Field,
		Candidates: cands,
		Question:   question,
	})
	resp.Text = joinLines(resp.Text,
		"Closest columns: "+candidateLabels(cands),
		"Reply accept-column-suggestion [n] to remember the choice.")
	return resp
}

type valueResolution struct {
	value      string
	note       string
	suggestion *suggest.Suggestion
}

// resolveValue maps raw through the value aliases and checks it against
// the column. A miss applies the best fuzzy candidate and returns a value
// suggestion; a miss with no candidates is an UnknownValueError.
func (s *Session) resolveValue(question string, ds *dataset.Dataset, field, column, raw string) (valueResolution, error) {
	e := s.eng
	res := e.values.Resolve(ds.Name, field, raw)
	if ds.Contains(column, res.Value) {
		return valueResolution{value: strings.TrimSpace(res.Value)}, nil
	}
	cands := fuzzy.SuggestValues(ds.Distinct(column), raw, e.valueTopN)
	if len(cands) == 0 {
		return valueResolution{}, errors.WithStack(&apperrors.UnknownValueError{Entity: ds.Name, Field: field, Asked: raw})
	}
	miss := &apperrors.UnknownValueError{
		Entity:      ds.Name,
		Field:       field,
		Asked:       raw,
		Suggestions: cands,
		Applied:     cands[0].Label,
	}
	return valueResolution{
		value: miss.Applied,
		note: joinLines(miss.Error(),
			"Candidates: "+candidateLabels(cands),
			"Reply accept-value-suggestion [n] to remember the value."),
		suggestion: &suggest.Suggestion{
			Kind:       suggest.Value,
			Entity:     ds.Name,
			Field:      field,
			AskedValue: raw,
			Candidates: cands,
			Question:   question,
		},
	}, nil
}

func answerText(res *query.Result) string {
	if res.IsList && !res.Truncated {
		return fmt.Sprintf("%d items: %s", res.Count, res.Text)
	}
	return res.Text
}

func joinLines(first string, rest ...string) string {
	lines := []string{first}
	for _, l := range rest {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
