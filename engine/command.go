package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/suggest"
	"github.com/greenscale93/IIsys/template"
)

// Command words of the suggestion protocol. Matching is case-insensitive
// and a leading "!" or "/" is ignored.
const (
	CmdAcceptColumn   = "accept-column-suggestion"
	CmdAcceptValue    = "accept-value-suggestion"
	CmdAcceptTemplate = "accept-template-suggestion"
	CmdSaveAlias      = "save-alias"
	CmdReject         = "reject-suggestion"
	CmdReload         = "reload"
	CmdUndoAlias      = "undo-alias"
	CmdAcceptAnyRU    = "принять_подсказку"
	CmdAcceptValueRU  = "принять_значение"
)

type command struct {
	name   string
	accept bool
	kind   suggest.Kind
	// anyKind accepts whatever is pending.
	anyKind  bool
	reject   bool
	reload   bool
	undo     bool
	index    int
	badIndex string
}

var commands = map[string]command{
	CmdAcceptColumn:   {accept: true, kind: suggest.Column},
	CmdAcceptValue:    {accept: true, kind: suggest.Value},
	CmdAcceptTemplate: {accept: true, kind: suggest.Template},
	CmdSaveAlias:      {accept: true, kind: suggest.SaveAlias},
	CmdAcceptAnyRU:    {accept: true, anyKind: true},
	CmdAcceptValueRU:  {accept: true, kind: suggest.Value},
	CmdReject:         {reject: true},
	CmdReload:         {reload: true},
	CmdUndoAlias:      {undo: true},
}

// AcceptCommand is the command text that accepts candidate n of kind.
func AcceptCommand(kind suggest.Kind, n int) string {
	var name string
	switch kind {
	case suggest.Column:
		name = CmdAcceptColumn
	case suggest.Value:
		name = CmdAcceptValue
	case suggest.Template:
		name = CmdAcceptTemplate
	case suggest.SaveAlias:
		return CmdSaveAlias
	default:
		return CmdAcceptAnyRU
	}
	return name + " " + strconv.Itoa(n)
}

// parseCommand recognizes "name [n]". The index defaults to 1.
func parseCommand(text string) (command, bool) {
	t := strings.TrimLeft(strings.TrimSpace(text), "!/")
	fields := strings.Fields(strings.ToLower(t))
	if len(fields) == 0 || len(fields) > 2 {
		return command{}, false
	}
	cmd, ok := commands[fields[0]]
	if !ok {
		return command{}, false
	}
	cmd.name = fields[0]
	cmd.index = 1
	if len(fields) == 2 {
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			cmd.badIndex = fields[1]
		} else {
			cmd.index = n
		}
	}
	return cmd, true
}

func (s *Session) command(ctx context.Context, cmd command) (*Response, error) {
	switch {
	case cmd.reject:
		return s.reject(), nil
	case cmd.reload:
		if err := s.eng.Reload(); err != nil {
			return nil, err
		}
		return s.reply(&Response{Text: "Reloaded schema, mappings and templates.", Source: SourceCommand}), nil
	case cmd.undo:
		text := "Last mapping change undone."
		if err := s.eng.mapping.UndoLast(); err != nil {
			text = apperrors.UserMessage(err)
		}
		return s.reply(&Response{Text: text, Source: SourceCommand}), nil
	case cmd.badIndex != "":
		return s.reply(&Response{
			Text:   fmt.Sprintf("%q is not a candidate number", cmd.badIndex),
			Source: SourceCommand,
		}), nil
	}
	kind := cmd.kind
	if cmd.anyKind {
		kind = s.slot.Kind()
	}
	return s.accept(ctx, kind, cmd.index)
}

func (s *Session) reject() *Response {
	text := "Suggestion dropped."
	if err := s.slot.Reject(); err != nil {
		text = apperrors.UserMessage(err)
	}
	return s.reply(&Response{Text: text, Source: SourceCommand})
}

// accept persists the chosen candidate, then re-answers or executes as the
// suggestion kind requires. A failed accept leaves nothing persisted.
func (s *Session) accept(ctx context.Context, kind suggest.Kind, index int) (*Response, error) {
	e := s.eng
	sg, c, err := s.slot.Accept(kind, index)
	if err != nil {
		return s.reply(&Response{Text: apperrors.UserMessage(err), Source: SourceCommand}), nil
	}

	switch sg.Kind {
	case suggest.Column:
		if err := e.mapping.AddFieldAlias(c.Label, sg.Field); err != nil {
			return nil, errors.Wrap(err, "save field alias")
		}
		return s.reanswer(ctx, sg.Question, fmt.Sprintf("Saved: %s now resolves to column %s.", sg.Field, c.Label)), nil

	case suggest.Value:
		res, err := e.values.Add(sg.Entity, sg.Field, sg.AskedValue, c.Label)
		if err != nil {
			return nil, errors.Wrap(err, "save value alias")
		}
		note := fmt.Sprintf("Saved: %q means %q.", sg.AskedValue, c.Label)
		if res.Degraded {
			note += fmt.Sprintf(" No reference dictionary is known for %s.%s, so the alias applies to that field only.", sg.Entity, sg.Field)
		}
		return s.reanswer(ctx, sg.Question, note), nil

	case suggest.SaveAlias:
		key, err := e.templates.SaveAlias(sg.Question, sg.TemplateID)
		if err != nil {
			return nil, errors.Wrap(err, "save template alias")
		}
		return s.reply(&Response{
			Text:     fmt.Sprintf("Saved: questions shaped like %q now use %s.", key, sg.TemplateID),
			Source:   SourceCommand,
			Template: sg.TemplateID,
		}), nil

	case suggest.Template:
		return s.acceptTemplate(ctx, sg, c.Label)
	}
	return s.reply(&Response{Text: apperrors.UserMessage(apperrors.ErrNoSuggestion), Source: SourceCommand}), nil
}

// reanswer runs question again after an alias was learned.
func (s *Session) reanswer(ctx context.Context, question, note string) *Response {
	s.last = question
	resp := s.answer(ctx, question)
	resp.Text = joinLines(note, resp.Text)
	return s.reply(resp)
}

// acceptTemplate binds the question to template id and executes it. The
// params of an uncertain inference are reused; otherwise they are mapped
// for the chosen template.
func (s *Session) acceptTemplate(ctx context.Context, sg *suggest.Suggestion, id string) (*Response, error) {
	e := s.eng
	var mt *template.Match
	if id == sg.TemplateID && sg.Params != nil {
		tpl, ok := e.templates.Get(id)
		if !ok {
			return s.reply(&Response{Text: fmt.Sprintf("template %s no longer exists", id), Source: SourceCommand}), nil
		}
		mt = &template.Match{Template: tpl, Params: sg.Params, Strategy: template.StrategyInference, Confidence: 1}
	} else {
		var err error
		mt, err = e.matcher.MapParameters(ctx, sg.Question, id)
		if err != nil {
			return s.reply(&Response{
				Text:   fmt.Sprintf("Could not fill the parameters of %s: %s", id, apperrors.UserMessage(err)),
				Source: SourceCommand,
			}), nil
		}
	}

	key, err := e.templates.SaveAlias(sg.Question, id)
	if err != nil {
		return nil, errors.Wrap(err, "save template alias")
	}
	s.last = sg.Question
	resp := s.runTemplate(ctx, sg.Question, mt)
	resp.Text = joinLines(fmt.Sprintf("Saved: questions shaped like %q now use %s.", key, id), resp.Text)
	return s.reply(resp), nil
}
