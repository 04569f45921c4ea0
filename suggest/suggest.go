// Package suggest holds the per-session suggestion slot: at most one
// pending, unconfirmed resolution choice that the user may accept or reject.
//
//	NONE → PENDING_COLUMN | PENDING_VALUE | PENDING_TEMPLATE | PENDING_SAVE_ALIAS → NONE
package suggest

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/query"
)

// Kind is the kind of a pending suggestion.
type Kind int

const (
	None Kind = iota
	Column
	Value
	Template
	SaveAlias
)

func (k Kind) String() string {
	switch k {
	case Column:
		return "column"
	case Value:
		return "value"
	case Template:
		return "template"
	case SaveAlias:
		return "save_alias"
	}
	return "none"
}

// State is the slot state name for k.
func (k Kind) State() string {
	switch k {
	case Column:
		return "PENDING_COLUMN"
	case Value:
		return "PENDING_VALUE"
	case Template:
		return "PENDING_TEMPLATE"
	case SaveAlias:
		return "PENDING_SAVE_ALIAS"
	}
	return "NONE"
}

// Suggestion is one pending choice.
type Suggestion struct {
	Kind       Kind
	Entity     string
	Field      string
	AskedValue string
	Candidates []apperrors.Candidate
	// TemplateID and Params describe a template awaiting confirmation.
	TemplateID string
	Params     map[string]query.Value
	// Question is the question that produced the suggestion.
	Question string
}

// Len is the number of candidates a user may pick from. A save_alias
// suggestion has exactly one implicit choice.
func (s *Suggestion) Len() int {
	if s.Kind == SaveAlias && len(s.Candidates) == 0 {
		return 1
	}
	return len(s.Candidates)
}

// Slot is the single-suggestion state machine. It is not safe for
// concurrent use; the owning session serializes access.
type Slot struct {
	cur *Suggestion
}

// Offer replaces whatever is pending. A nil or None suggestion clears.
func (s *Slot) Offer(sg *Suggestion) {
	if sg == nil || sg.Kind == None {
		s.cur = nil
		return
	}
	s.cur = sg
}

// Current returns the pending suggestion or nil.
func (s *Slot) Current() *Suggestion { return s.cur }

// Kind is the kind of the pending suggestion, None when empty.
func (s *Slot) Kind() Kind {
	if s.cur == nil {
		return None
	}
	return s.cur.Kind
}

// State reports the state name.
func (s *Slot) State() string { return s.Kind().State() }

// Accept resolves the pending suggestion with the 1-based index and
// returns it together with the chosen candidate. The slot is back to NONE
// afterwards, unless the call failed because of the index, in which case
// the suggestion stays pending for a retry.
func (s *Slot) Accept(kind Kind, index int) (*Suggestion, apperrors.Candidate, error) {
	if s.cur == nil {
		return nil, apperrors.Candidate{}, apperrors.ErrNoSuggestion
	}
	if kind != s.cur.Kind {
		return nil, apperrors.Candidate{}, errors.Wrapf(apperrors.ErrWrongSuggestion,
			"pending is %s, not %s", s.cur.Kind, kind)
	}
	n := s.cur.Len()
	if index < 1 || index > n {
		return nil, apperrors.Candidate{}, errors.WithHint(
			errors.Wrapf(apperrors.ErrIndexOutOfRange, "index %d", index),
			fmt.Sprintf("pick 1..%d", n))
	}
	sg := s.cur
	s.cur = nil
	var c apperrors.Candidate
	if len(sg.Candidates) > 0 {
		c = sg.Candidates[index-1]
	}
	return sg, c, nil
}

// Reject drops the pending suggestion.
func (s *Slot) Reject() error {
	if s.cur == nil {
		return apperrors.ErrNoSuggestion
	}
	s.cur = nil
	return nil
}

// Clear resets to NONE unconditionally.
func (s *Slot) Clear() { s.cur = nil }
